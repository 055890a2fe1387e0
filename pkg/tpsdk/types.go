package tpsdk

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Record is a JSON object exactly as the API returned it.
type Record map[string]any

// ============================================================================
// Workflows
// ============================================================================

// WorkflowType restricts GetWorkflows to one kind of workflow.
type WorkflowType string

const (
	WorkflowTypeMessage  WorkflowType = "message"
	WorkflowTypeIncident WorkflowType = "incident"
)

// WorkflowQuery filters GetWorkflows. Zero fields are not sent.
type WorkflowQuery struct {
	Enabled *bool
	Type    WorkflowType
}

// Validate rejects unknown workflow types.
func (q WorkflowQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Type, validation.In(WorkflowTypeMessage, WorkflowTypeIncident)),
	)
}

type runWorkflowRequest struct {
	TargetIDs []string `json:"targetIds"`
}

// ============================================================================
// Searches
// ============================================================================

// IncidentSearch is the input to SearchIncidents. A nil Page means
// DefaultIncidentPage.
type IncidentSearch struct {
	Filters *IncidentFilters
	Page    *Page
	Sort    []SortParam
}

// MessageSearch is the input to SearchMessages. A nil Page means
// DefaultMessagePage.
type MessageSearch struct {
	Filters *MessageFilters
	Page    *Page
	Sort    []SortParam
}

// searchRequest is the wire shape shared by the paged POST endpoints.
type searchRequest struct {
	StartRow   int         `json:"startRow"`
	EndRow     int         `json:"endRow"`
	Filters    any         `json:"filters,omitempty"`
	SortParams []SortParam `json:"sortParams,omitempty"`
}

type countRequest struct {
	Filters IncidentFilters `json:"filters"`
}

// ============================================================================
// Incident creation and message upload
// ============================================================================

// Incident priorities accepted by CreateIncident.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// NewIncident is the input to CreateIncident.
type NewIncident struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// Validate requires a title and a known priority.
func (n NewIncident) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Title, validation.Required),
		validation.Field(&n.Priority, validation.Required,
			validation.In(PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical)),
	)
}

// MaxUploadRecipients is the most recipients one uploaded message may list.
const MaxUploadRecipients = 10000

var rfcMessageID = regexp.MustCompile(`^<[^<>\s]+>$`)

// MessageUpload attaches a message to an existing incident.
type MessageUpload struct {
	IncidentID string          `json:"incident_id"`
	Message    UploadedMessage `json:"message"`
}

// UploadedMessage describes the message being attached. RFCMessageID must
// keep its angle brackets, e.g. "<abc@example.com>".
type UploadedMessage struct {
	RFCMessageID       string   `json:"rfcMessageId"`
	RecipientAddresses []string `json:"recipient_addresses"`
	Sender             string   `json:"sender,omitempty"`
	Subject            string   `json:"subject,omitempty"`
	Disposition        string   `json:"disposition,omitempty"`
}

// Validate checks the message ID form and the recipient list bounds.
func (m UploadedMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.RFCMessageID, validation.Required,
			validation.Match(rfcMessageID).Error("must be wrapped in angle brackets")),
		validation.Field(&m.RecipientAddresses, validation.Required,
			validation.Length(1, MaxUploadRecipients), nonBlankItems),
	)
}

// Validate checks the incident ID and the message.
func (u MessageUpload) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.IncidentID, validation.Required, validation.By(notWhitespace)),
		validation.Field(&u.Message),
	)
}

// Bool returns a pointer to v, for optional boolean parameters.
func Bool(v bool) *bool {
	return &v
}
