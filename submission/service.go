package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/action"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/forms"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/log"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/metrics"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/schema"
)

const (
	MsgMissingForm   = "Form ID is required"
	MsgFormNotFound  = "Form not found"
	MsgInvalidConfig = "Form configuration is invalid"
	MsgFailed        = "Submission failed"
	MsgActionFailed  = "Action failed"
)

// ErrPersistence means the submission passed validation, its actions ran,
// but the record could not be stored.
var ErrPersistence = errors.New("submission not persisted")

type FormResolver interface {
	Resolve(ctx context.Context, ref model.FormReference) (model.FormConfig, error)
}

type RecordStore interface {
	CreateSubmission(ctx context.Context, rec *model.SubmissionRecord) error
}

type ActionRunner interface {
	Run(ctx context.Context, actions []model.Action, p action.Payload) []model.ActionResult
}

// Result is the outcome reported back to the submitter.
type Result struct {
	Success       bool
	SubmissionID  string
	ActionResults []model.ActionResult
	Error         string
	Errors        schema.FieldErrors

	// Outcome classifies the result, see the metrics.Outcome constants.
	Outcome string
}

type successBody struct {
	Success       bool               `json:"success"`
	SubmissionID  string             `json:"submissionId"`
	ActionResults []actionResultBody `json:"actionResults"`
}

// actionResultBody hides failure details, which stay in the stored record.
type actionResultBody struct {
	ActionKind   model.ActionKind `json:"actionKind"`
	Success      bool             `json:"success"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

type failureBody struct {
	Success bool               `json:"success"`
	Error   string             `json:"error,omitempty"`
	Errors  schema.FieldErrors `json:"errors,omitempty"`
}

// MarshalJSON renders successes and failures with separate shapes. A
// success always carries its actionResults list, even when empty.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(failureBody{Error: r.Error, Errors: r.Errors})
	}
	body := successBody{
		Success:       true,
		SubmissionID:  r.SubmissionID,
		ActionResults: make([]actionResultBody, len(r.ActionResults)),
	}
	for i, ar := range r.ActionResults {
		body.ActionResults[i] = actionResultBody{
			ActionKind: ar.ActionType,
			Success:    ar.Success,
			Timestamp:  ar.Timestamp,
		}
		if !ar.Success {
			body.ActionResults[i].ErrorMessage = MsgActionFailed
		}
	}
	return json.Marshal(body)
}

// Message returns a single line describing a failed result.
func (r Result) Message() string {
	if r.Error != "" {
		return r.Error
	}
	msgs := make([]string, len(r.Errors))
	for i, fe := range r.Errors {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

type Config struct {
	Forms   FormResolver
	Store   RecordStore
	Actions ActionRunner
	Metrics *metrics.Metrics
}

// Service takes one submission attempt from lookup to persisted record.
type Service struct {
	forms   FormResolver
	store   RecordStore
	actions ActionRunner
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

func NewService(cfg Config) *Service {
	return &Service{
		forms:   cfg.Forms,
		store:   cfg.Store,
		actions: cfg.Actions,
		metrics: cfg.Metrics,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Submit processes attempt. The returned error is only set when the record
// could not be persisted; every other failure is described by the Result.
func (s *Service) Submit(ctx context.Context, attempt model.SubmissionAttempt) (Result, error) {
	res, err := s.submit(ctx, attempt)
	s.metrics.ObserveSubmission(res.Outcome)
	return res, err
}

func (s *Service) submit(ctx context.Context, attempt model.SubmissionAttempt) (Result, error) {
	if attempt.Form.IsZero() {
		return failure(metrics.OutcomeInvalid, MsgMissingForm), nil
	}

	form, err := s.forms.Resolve(ctx, attempt.Form)
	if errors.Is(err, forms.ErrNotFound) {
		return failure(metrics.OutcomeNotFound, MsgFormNotFound), nil
	}
	if err != nil {
		log.WithFields(log.Fields{"form": attempt.Form.String(), "error": err}).
			Error("submission.resolve_form")
		return failure(metrics.OutcomeError, MsgFailed), nil
	}

	honeypot, data := splitReserved(attempt)
	if form.Settings.SpamProtectionEnabled && honeypot != "" {
		log.WithFields(log.Fields{"form_id": form.ID}).Debug("submission.spam")
		return Result{
			Success:       true,
			SubmissionID:  s.newID(),
			ActionResults: s.decoyResults(form.Actions),
			Outcome:       metrics.OutcomeSpam,
		}, nil
	}

	compiled, err := schema.Compile(form.Fields)
	if err != nil {
		log.WithFields(log.Fields{"form_id": form.ID, "error": err}).
			Error("submission.invalid_form_config")
		return failure(metrics.OutcomeError, MsgInvalidConfig), nil
	}

	validated, fieldErrs := compiled.Schema.Validate(data)
	if len(fieldErrs) > 0 {
		return Result{Errors: fieldErrs, Outcome: metrics.OutcomeInvalid}, nil
	}

	rawJSON, err := json.Marshal(data)
	if err != nil {
		// only reachable with values that did not come from a decoded body
		return failure(metrics.OutcomeInvalid, err.Error()), nil
	}

	// runs to completion even if the submitter goes away
	ctx = context.WithoutCancel(ctx)

	id := s.newID()
	submittedAt := s.now().UTC()
	results := s.actions.Run(ctx, form.Actions, action.Payload{
		SubmissionID: id,
		FormID:       form.ID,
		FormSlug:     form.Slug,
		FormName:     form.Name,
		Data:         validated,
		Metadata:     attempt.Metadata,
		SubmittedAt:  submittedAt,
		Fields:       form.Fields,
	})

	rec := &model.SubmissionRecord{
		ID:            id,
		FormID:        form.ID,
		FormName:      form.Name,
		ValidatedData: validated,
		RawDataJSON:   string(rawJSON),
		Metadata:      attempt.Metadata,
		ActionResults: results,
		SubmittedAt:   submittedAt,
		Status:        model.StatusNew,
	}
	if err = s.store.CreateSubmission(ctx, rec); err != nil {
		log.WithFields(log.Fields{
			"submission_id": id,
			"form_id":       form.ID,
			"actions":       len(results),
			"error":         err,
		}).Error("db.insert_submission")
		res := failure(metrics.OutcomeError, MsgFailed)
		return res, fmt.Errorf("%w: %s: %v", ErrPersistence, id, err)
	}

	return Result{
		Success:       true,
		SubmissionID:  id,
		ActionResults: results,
		Outcome:       metrics.OutcomeAccepted,
	}, nil
}

// decoyResults reports every configured action as delivered without running it.
func (s *Service) decoyResults(actions []model.Action) []model.ActionResult {
	now := s.now().UTC()
	results := make([]model.ActionResult, len(actions))
	for i, a := range actions {
		results[i] = model.ActionResult{ActionType: a.Kind, Success: true, Timestamp: now}
	}
	return results
}

func failure(outcome, msg string) Result {
	return Result{Error: msg, Outcome: outcome}
}

// splitReserved returns the honeypot value and the field data without
// reserved keys.
func splitReserved(attempt model.SubmissionAttempt) (string, map[string]any) {
	honeypot := attempt.Honeypot
	data := make(map[string]any, len(attempt.RawData))
	for k, v := range attempt.RawData {
		if !strings.HasPrefix(k, model.ReservedPrefix) {
			data[k] = v
			continue
		}
		if k == model.HoneypotField && honeypot == "" {
			if text, err := schema.Coerce(model.FieldText, v); err == nil {
				honeypot, _ = text.(string)
				honeypot = strings.TrimSpace(honeypot)
			}
		}
	}
	return honeypot, data
}
