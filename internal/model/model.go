package model

import "time"

const (
	TenantsTable = "Tenants"
	MembersTable = "TenantMembers"
)

// PlatformWhatsApp and PlatformWeb are the two conversation origins a tenant
// can run side by side. A contact talking on both gets two conversations.
const (
	PlatformWhatsApp = "whatsapp"
	PlatformWeb      = "web"
)

const (
	SenderUser  = "user"
	SenderAgent = "agent"
	SenderAI    = "ai"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// TenantRecord is the control-plane entry for one customer organisation,
// including the coordinates of its isolated database.
type TenantRecord struct {
	TenantID  string `dynamodbav:"tenantId"`
	Name      string `dynamodbav:"name"`
	DBHost    string `dynamodbav:"dbHost"`
	DBPort    int    `dynamodbav:"dbPort"`
	DBName    string `dynamodbav:"dbName"`
	DBUser    string `dynamodbav:"dbUser"`
	DBPass    string `dynamodbav:"dbPass"`
	KBPointer string `dynamodbav:"kbPointer"`
	CreatedAt string `dynamodbav:"createdAt"`
}

// MemberItem is a staff member of a tenant. SpecialRole drives automatic
// ticket assignment (e.g. "billing", "tech-support").
type MemberItem struct {
	PK          string `dynamodbav:"pk"`
	TenantID    string `dynamodbav:"tenantId"`
	MemberID    string `dynamodbav:"memberId"`
	Email       string `dynamodbav:"email"`
	Name        string `dynamodbav:"name"`
	SpecialRole string `dynamodbav:"specialRole"`
	CreatedAt   string `dynamodbav:"createdAt"`
}

func MemberPK(tenantID, memberID string) string {
	return tenantID + "#" + memberID
}

type Conversation struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenantId"`
	UserID        string     `json:"userId"`
	Platform      string     `json:"platform"`
	ContactName   string     `json:"contactName"`
	ContactNumber string     `json:"contactNumber"`
	UnreadCount   int        `json:"unreadCount"`
	LastMessage   string     `json:"lastMessage"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	StartedAt     time.Time  `json:"startedAt"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"sender"`
	Type           string    `json:"type"`
	Content        string    `json:"content"`
	MediaURL       string    `json:"mediaUrl,omitempty"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
)

const (
	AssignedByAI    = "ai"
	AssignedByHuman = "human"
)

type Ticket struct {
	ID             string         `json:"id"`
	TicketNumber   string         `json:"ticketNumber"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Priority       TicketPriority `json:"priority"`
	Status         TicketStatus   `json:"status"`
	TenantID       string         `json:"tenantId"`
	ConversationID string         `json:"conversationId,omitempty"`
	AssignedToID   string         `json:"assignedToId,omitempty"`
	CreatedByID    string         `json:"createdById,omitempty"`
	AssignedByType string         `json:"assignedByType"`
	AssignedByID   string         `json:"assignedById,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Trigger is a tenant-configured keyword/intent rule used to auto-create and
// auto-assign a ticket from an inbound message.
type Trigger struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenantId"`
	Keyword      string    `json:"keyword"`
	Intent       string    `json:"intent"`
	AssignedRole string    `json:"assignedRole"`
	CreatedAt    time.Time `json:"createdAt"`
}
