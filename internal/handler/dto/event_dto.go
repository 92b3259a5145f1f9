package dto

// LogEventRequest - произвольное событие
type LogEventRequest struct {
	EventType string `json:"event_type" binding:"required,max=128"`
}

// UserEventRequest - типизированное событие пользователя
type UserEventRequest struct {
	EventType string                 `json:"event_type" binding:"required,oneof=signup login answer click logout"`
	Meta      map[string]interface{} `json:"meta"`
}
