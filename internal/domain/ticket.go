package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// Valid reports whether s is a known lifecycle state.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency buckets.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Category is a ticket topic shared by classification and agent expertise.
type Category string

const (
	CategoryTechnical      Category = "technical"
	CategoryBilling        Category = "billing"
	CategoryAccount        Category = "account"
	CategoryGeneral        Category = "general"
	CategoryComplaint      Category = "complaint"
	CategoryFeatureRequest Category = "feature_request"
)

// Valid reports whether c is one of the six known categories. The empty
// category (unset) is not valid.
func (c Category) Valid() bool {
	switch c {
	case CategoryTechnical, CategoryBilling, CategoryAccount, CategoryGeneral, CategoryComplaint, CategoryFeatureRequest:
		return true
	}
	return false
}

// Sentiment is the coarse tone label of a ticket.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                 string
	TicketNumber       string
	CustomerName       string
	CustomerEmail      string
	CustomerID         string
	Subject            string
	Description        string
	Category           Category
	CategoryConfidence float64
	Sentiment          Sentiment
	SentimentScore     float64
	UrgencyScore       float64
	Priority           TicketPriority
	Status             TicketStatus
	AssignedAgentID    *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ResolvedAt         *time.Time
}

// HasCategory reports whether the ticket carries a classification.
func (t *Ticket) HasCategory() bool {
	return t.Category != ""
}

// Text returns the free text the signal extractor reads.
func (t *Ticket) Text() string {
	if t.Subject == "" {
		return t.Description
	}
	if t.Description == "" {
		return t.Subject
	}
	return t.Subject + "\n" + t.Description
}
