package store

// Outbox statuses.
const (
	OutboxQueued = "queued"
	OutboxSent   = "sent"
	OutboxFailed = "failed"
)

// OutboxEntry is one journaled outbound send.
type OutboxEntry struct {
	ClientID     string
	Phone        string
	ContactID    string
	Body         string
	TemplateID   string
	TemplateVars map[string]string
	Status       string
	ServerID     string
	ErrorMessage string
	ResentAs     string
	CreatedAt    int64
	UpdatedAt    int64
}

// IsTemplate reports whether the entry was sent from a template.
func (e OutboxEntry) IsTemplate() bool { return e.TemplateID != "" }
