package model

import "time"

type ActionKind string

const (
	ActionWebhook ActionKind = "webhook"
	ActionEmail   ActionKind = "email"
	ActionStorage ActionKind = "storage"
)

// Action is one delivery step of a form. Exactly the payload matching Kind
// is expected to be set; unknown kinds are kept and fail when executed.
type Action struct {
	Kind    ActionKind     `json:"type" yaml:"type" validate:"required"`
	Webhook *WebhookAction `json:"webhook,omitempty" yaml:"webhook"`
	Email   *EmailAction   `json:"email,omitempty" yaml:"email"`
	Storage *StorageAction `json:"storage,omitempty" yaml:"storage"`
}

type WebhookAction struct {
	URL     string            `json:"url" yaml:"url" validate:"required,url"`
	Method  string            `json:"method,omitempty" yaml:"method" validate:"omitempty,oneof=POST PUT PATCH"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers"`
	Secret  string            `json:"secret,omitempty" yaml:"secret"`
}

type EmailAction struct {
	To           []string `json:"to" yaml:"to" validate:"required,min=1,dive,email"`
	Subject      string   `json:"subject,omitempty" yaml:"subject"`
	ReplyToField string   `json:"replyToField,omitempty" yaml:"replyToField"`
}

type StorageAction struct {
	Prefix string `json:"prefix,omitempty" yaml:"prefix"`
}

// ActionResult is the outcome of one attempted action.
type ActionResult struct {
	ActionType   ActionKind `json:"actionKind"`
	Success      bool       `json:"success"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}
