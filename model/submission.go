package model

import "time"

type SubmissionStatus string

const (
	StatusNew      SubmissionStatus = "new"
	StatusRead     SubmissionStatus = "read"
	StatusReplied  SubmissionStatus = "replied"
	StatusArchived SubmissionStatus = "archived"
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusNew, StatusRead, StatusReplied, StatusArchived:
		return true
	}
	return false
}

// Reserved keys of an inbound submission. Every key starting with
// ReservedPrefix is stripped before validation.
const (
	ReservedPrefix     = "_"
	HoneypotField      = "_honeypot"
	FormIDField        = "_formId"
	FormSlugField      = "_formSlug"
	RedirectField      = "_redirect"
	ErrorRedirectField = "_errorRedirect"
)

type SubmissionMetadata struct {
	UserAgent string `json:"userAgent,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	IPHash    string `json:"ipHash,omitempty"`
}

// SubmissionAttempt is one inbound submission as received.
type SubmissionAttempt struct {
	Form     FormReference
	RawData  map[string]any
	Honeypot string
	Metadata SubmissionMetadata
}

type SubmissionRecord struct {
	ID            string             `json:"id"`
	FormID        string             `json:"formId"`
	FormName      string             `json:"formName"`
	ValidatedData map[string]any     `json:"data"`
	RawDataJSON   string             `json:"rawData"`
	Metadata      SubmissionMetadata `json:"metadata"`
	ActionResults []ActionResult     `json:"actionResults"`
	SubmittedAt   time.Time          `json:"submittedAt"`
	Status        SubmissionStatus   `json:"status"`
}
