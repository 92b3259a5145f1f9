package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/pulse-api/internal/domain/entity"
	"github.com/yourusername/pulse-api/internal/handler/dto"
	"github.com/yourusername/pulse-api/internal/middleware"
	"github.com/yourusername/pulse-api/internal/pkg/logger"
	"github.com/yourusername/pulse-api/internal/service"
)

// QuizHandler обрабатывает запросы банка вопросов и ответов
type QuizHandler struct {
	quizService *service.QuizService
}

// NewQuizHandler создает новый обработчик вопросов
func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

// CreateQuestion создает вопрос
// POST /api/questions
func (h *QuizHandler) CreateQuestion(c *gin.Context) {
	var req dto.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	p, _ := middleware.PrincipalFrom(c)

	question, err := h.quizService.CreateQuestion(c.Request.Context(), p, service.CreateQuestionInput{
		Text:               req.Text,
		Options:            req.EntityOptions(),
		CorrectOptionIndex: *req.CorrectOptionIndex,
		Difficulty:         req.Difficulty,
		Tags:               req.Tags,
	})
	if err != nil {
		respondError(c, "QuizHandler", err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewAdminQuestionResponse(question))
}

// ListQuestions возвращает вопросы без правильных ответов
// GET /api/questions
func (h *QuizHandler) ListQuestions(c *gin.Context) {
	questions, err := h.quizService.ListQuestions(c.Request.Context())
	if err != nil {
		respondError(c, "QuizHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewQuestionListResponse(questions))
}

// ListQuestionsAdmin возвращает вопросы вместе с правильными ответами
// GET /api/admin/questions
func (h *QuizHandler) ListQuestionsAdmin(c *gin.Context) {
	questions, err := h.quizService.ListQuestions(c.Request.Context())
	if err != nil {
		respondError(c, "QuizHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAdminQuestionListResponse(questions))
}

// SubmitAnswer сохраняет ответ на вопрос
// POST /api/answers
func (h *QuizHandler) SubmitAnswer(c *gin.Context) {
	var req dto.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "questionId must be a valid UUID", "error_type": "validation_error"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)

	answer, err := h.quizService.SubmitAnswer(c.Request.Context(), p, questionID, *req.SelectedOptionIndex)
	if err != nil {
		respondError(c, "QuizHandler", err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewAnswerResponse(answer))
}

// ExportAnswers выгружает все ответы в CSV или Excel формате
// GET /api/admin/answers/export?format=csv|xlsx
func (h *QuizHandler) ExportAnswers(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx", "error_type": "validation_error"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)

	answers, err := h.quizService.ExportAnswers(c.Request.Context(), p)
	if err != nil {
		respondError(c, "QuizHandler", err)
		return
	}

	filename := fmt.Sprintf("answers_%s", time.Now().UTC().Format("2006-01-02"))
	if format == "xlsx" {
		h.exportXLSX(c, answers, filename)
		return
	}
	h.exportCSV(c, answers, filename)
}

var exportHeaders = []string{"ID", "Вопрос", "Пользователь", "Имя пользователя", "Выбранный вариант", "Правильно", "Создан (UTC)"}

func answerRow(a entity.Answer) []string {
	correct := "Нет"
	if a.IsCorrect {
		correct = "Да"
	}
	return []string{
		a.ID.String(),
		a.QuestionID.String(),
		a.UserID.String(),
		sanitizeForExcel(a.Username),
		strconv.Itoa(a.SelectedOptionIndex),
		correct,
		a.CreatedAt.UTC().Format(entity.BucketTimeLayout),
	}
}

// exportCSV экспортирует ответы в CSV с правильным экранированием спецсимволов
func (h *QuizHandler) exportCSV(c *gin.Context, answers []entity.Answer, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))
	c.Status(http.StatusOK)

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	writer.Write(exportHeaders)
	for _, a := range answers {
		writer.Write(answerRow(a))
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		logger.FromContext(c.Request.Context(), "QuizHandler").WithError(err).Error("[QuizHandler] Ошибка записи CSV")
	}
}

// exportXLSX экспортирует ответы в Excel с использованием StreamWriter
func (h *QuizHandler) exportXLSX(c *gin.Context, answers []entity.Answer, filename string) {
	log := logger.FromContext(c.Request.Context(), "QuizHandler")

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Ответы"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.WithError(err).Error("[QuizHandler] Ошибка создания StreamWriter")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file", "error_type": "internal_server_error"})
		return
	}

	headers := make([]interface{}, 0, len(exportHeaders))
	for _, name := range exportHeaders {
		headers = append(headers, name)
	}
	if err := sw.SetRow("A1", headers); err != nil {
		log.WithError(err).Error("[QuizHandler] Ошибка записи заголовков")
	}

	for i, a := range answers {
		row := answerRow(a)
		cells := make([]interface{}, 0, len(row))
		for _, v := range row {
			cells = append(cells, v)
		}
		// Индекс варианта остается числом
		cells[4] = a.SelectedOptionIndex
		if err := sw.SetRow(fmt.Sprintf("A%d", i+2), cells); err != nil {
			log.WithError(err).Errorf("[QuizHandler] Ошибка записи строки %d", i+2)
		}
	}

	if err := sw.Flush(); err != nil {
		log.WithError(err).Error("[QuizHandler] Ошибка при Flush")
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		log.WithError(err).Error("[QuizHandler] Ошибка записи Excel в response")
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}
