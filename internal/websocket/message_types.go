package websocket

// Входящие сообщения клиента
const (
	// MessageSubscribe ограничивает рассылку перечисленными событиями
	MessageSubscribe = "subscribe"

	// MessageUnsubscribe убирает события из подписки
	MessageUnsubscribe = "unsubscribe"
)

// Служебные сообщения сервера
const (
	// MessageConnected отправляется сразу после регистрации клиента
	MessageConnected = "server:connected"

	// MessageSubscribed подтверждает текущий набор подписок
	MessageSubscribed = "server:subscribed"

	// MessageError сообщает об ошибке обработки входящего сообщения
	MessageError = "server:error"

	// MessageBufferWarning предупреждает медленного клиента перед отключением
	MessageBufferWarning = "server:buffer_warning"
)

// Event - формат кадра канала: {"type": "...", "data": {...}}
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// subscriptionRequest - данные subscribe/unsubscribe
type subscriptionRequest struct {
	Events []string `json:"events"`
}
