package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pulse-api/internal/domain/entity"
	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
	"github.com/yourusername/pulse-api/pkg/auth"
)

func TestLogEvent_AndRecent(t *testing.T) {
	s := newTestServer(t)
	token := s.signupUser(t, "alice", "alice@example.com")

	for i := 0; i < 12; i++ {
		w := s.do(http.MethodPost, "/api/events", gin.H{"event_type": "page_view_" + strconv.Itoa(i)}, bearer(token))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	assert.Contains(t, s.notifier.Events(), entity.NotifyNewEvent)

	w := s.do(http.MethodGet, "/api/events", nil, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)

	var events []entity.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Len(t, events, 10, "Возвращаются только 10 последних событий")
	for _, e := range events {
		assert.Equal(t, "alice", e.Username, "Имя берется из принципала")
	}
}

func TestLogEvent_RequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/events", gin.H{"event_type": "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/events", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecordUserEvent(t *testing.T) {
	s := newTestServer(t)
	token := s.signupUser(t, "bob", "bob@example.com")
	before := len(s.store.userEvents)

	t.Run("valid type", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/user-events", gin.H{"event_type": "click", "meta": gin.H{"button": "play"}}, bearer(token))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.Len(t, s.store.userEvents, before+1)
		last := s.store.userEvents[len(s.store.userEvents)-1]
		assert.Equal(t, "click", last.EventType)
		assert.Equal(t, "bob", last.Username)
		assert.Equal(t, "play", last.Meta["button"])
	})

	t.Run("unknown type", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/user-events", gin.H{"event_type": "purchase"}, bearer(token))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantType   string
	}{
		{fmt.Errorf("%w: bad", apperrors.ErrValidation), http.StatusBadRequest, "validation_error"},
		{fmt.Errorf("%w: user", apperrors.ErrConflict), http.StatusBadRequest, "conflict"},
		{apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{apperrors.ErrForbidden, http.StatusForbidden, "forbidden"},
		{apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("query: %w", apperrors.ErrUnavailable), http.StatusServiceUnavailable, "dependency_unavailable"},
		{auth.ErrSigningSecretMissing, http.StatusInternalServerError, "internal_server_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_server_error"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, errorType := classifyError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantType, errorType)
		})
	}
}

func TestRespondError_HidesInternalDetails(t *testing.T) {
	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		respondError(c, "Test", errors.New("pq: connection reset"))
	})
	s := &testServer{router: router}

	w := s.do(http.MethodGet, "/", nil, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}
