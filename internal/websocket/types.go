package websocket

// Room name helpers. Every channel is either tenant-scoped (all staff clients
// of one tenant) or conversation-scoped (the external contact plus anyone
// watching that thread). Namespacing avoids id collisions across the two.
func TenantRoom(tenantID string) string {
	return "tenant:" + tenantID
}

func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}

type Room struct {
	Id      string               `json:"id"`
	Clients map[string]*WSClient `json:"clients"`
}

// WSMessage is the envelope delivered to joined clients and carried over the
// redis bridge between processes.
type WSMessage struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	RoomID    string      `json:"roomId"`
	Timestamp int64       `json:"timestamp"`
}

type RoomRes struct {
	ID string `json:"id"`
}
