package realtime

// Event is the wire envelope for every message pushed to a client.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Event names pushed by the dispatcher.
const (
	EventConnected            = "connected"
	EventNotificationNew      = "notification:new"
	EventNotificationRead     = "notification:read"
	EventNotificationDeleted  = "notification:deleted"
	EventNotificationsAllRead = "notifications:all-read"
	EventChatMessage          = "chat:message"
	EventChatThreadUpdate     = "chat:thread:update"
	EventChatTyping           = "chat:typing"
	EventSubscribed           = "subscribed"
	EventPong                 = "pong"
	EventTypingAck            = "typing:ack"
	EventError                = "error"
)
