package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func contactForm() *model.FormConfig {
	maxLen := 500
	return &model.FormConfig{
		Slug: "contact",
		Name: "Contact",
		Fields: []model.FormFieldConfig{
			{Name: "name", Label: "Name", Type: model.FieldText, Required: true},
			{Name: "email", Label: "Email", Type: model.FieldEmail, Required: true},
			{Name: "topic", Type: model.FieldSelect, Options: []model.FieldOption{
				{Label: "Sales", Value: "sales"},
				{Label: "Support", Value: "support"},
			}},
			{Name: "message", Type: model.FieldTextarea, Validation: &model.FieldValidation{MaxLength: &maxLen}},
		},
		Actions: []model.Action{
			{Kind: model.ActionWebhook, Webhook: &model.WebhookAction{URL: "https://example.com/hook", Secret: "s3cr3t"}},
			{Kind: model.ActionStorage, Storage: &model.StorageAction{Prefix: "forms"}},
		},
		Settings: model.FormSettings{SubmitText: "Send", SpamProtectionEnabled: true},
	}
}

func TestFormRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	f := contactForm()
	require.NoError(t, s.CreateForm(ctx, f))
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, 1, f.Version)

	got, err := s.GetFormByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "contact", got.Slug)
	assert.Equal(t, f.Settings, got.Settings)
	require.Len(t, got.Fields, 4)
	assert.Equal(t, []string{"name", "email", "topic", "message"},
		[]string{got.Fields[0].Name, got.Fields[1].Name, got.Fields[2].Name, got.Fields[3].Name})
	assert.True(t, got.Fields[0].Required)
	assert.Equal(t, f.Fields[2].Options, got.Fields[2].Options)
	require.NotNil(t, got.Fields[3].Validation)
	assert.Equal(t, 500, *got.Fields[3].Validation.MaxLength)
	assert.Nil(t, got.Fields[0].Validation)
	require.Len(t, got.Actions, 2)
	assert.Equal(t, model.ActionWebhook, got.Actions[0].Kind)
	assert.Equal(t, "s3cr3t", got.Actions[0].Webhook.Secret)
	assert.Equal(t, "forms", got.Actions[1].Storage.Prefix)

	bySlug, err := s.GetFormBySlug(ctx, "contact")
	require.NoError(t, err)
	assert.Equal(t, f.ID, bySlug.ID)

	forms, err := s.ListForms(ctx)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Empty(t, forms[0].Fields)
}

func TestFormNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.GetFormByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetFormBySlug(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteForm(ctx, "missing"), ErrNotFound)

	f := contactForm()
	f.ID = "missing"
	f.Version = 1
	assert.ErrorIs(t, s.UpdateForm(ctx, f), ErrNotFound)
}

func TestUpdateFormOptimisticLock(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	f := contactForm()
	require.NoError(t, s.CreateForm(ctx, f))

	stale := *f
	f.Name = "Contact us"
	f.Fields = f.Fields[:2]
	require.NoError(t, s.UpdateForm(ctx, f))
	assert.Equal(t, 2, f.Version)

	stale.Name = "Lost update"
	assert.ErrorIs(t, s.UpdateForm(ctx, &stale), ErrConflict)

	got, err := s.GetFormByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Contact us", got.Name)
	assert.Equal(t, 2, got.Version)
	assert.Len(t, got.Fields, 2)
}

func TestSlugTaken(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.CreateForm(ctx, contactForm()))
	assert.ErrorIs(t, s.CreateForm(ctx, contactForm()), ErrSlugTaken)
}

func TestUpsertFormBySlug(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	f := contactForm()
	require.NoError(t, s.UpsertFormBySlug(ctx, f))
	id := f.ID

	again := contactForm()
	again.Name = "Contact v2"
	require.NoError(t, s.UpsertFormBySlug(ctx, again))
	assert.Equal(t, id, again.ID)
	assert.Equal(t, 2, again.Version)

	forms, err := s.ListForms(ctx)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Equal(t, "Contact v2", forms[0].Name)
}

func TestDeleteFormKeepsSubmissions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	f := contactForm()
	require.NoError(t, s.CreateForm(ctx, f))
	rec := testRecord("sub-1", f.ID, time.Now())
	require.NoError(t, s.CreateSubmission(ctx, &rec))

	require.NoError(t, s.DeleteForm(ctx, f.ID))
	_, err := s.GetSubmission(ctx, "sub-1")
	assert.NoError(t, err)
}

func testRecord(id, formID string, at time.Time) model.SubmissionRecord {
	at = at.UTC().Truncate(time.Second)
	return model.SubmissionRecord{
		ID:            id,
		FormID:        formID,
		FormName:      "Contact",
		ValidatedData: map[string]any{"name": "Ada", "subscribe": true, "age": 36.0},
		RawDataJSON:   `{"name":"Ada","subscribe":"on","age":"36"}`,
		Metadata:      model.SubmissionMetadata{UserAgent: "test", IPHash: "abc"},
		ActionResults: []model.ActionResult{
			{ActionType: model.ActionWebhook, Success: true, Timestamp: at},
			{ActionType: model.ActionEmail, Success: false, ErrorMessage: "smtp down", Timestamp: at},
		},
		SubmittedAt: at,
	}
}

func TestSubmissionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now()
	older := testRecord("sub-1", "form-1", now.Add(-time.Hour))
	newer := testRecord("sub-2", "form-1", now)
	other := testRecord("sub-3", "form-2", now)
	for _, rec := range []*model.SubmissionRecord{&older, &newer, &other} {
		require.NoError(t, s.CreateSubmission(ctx, rec))
	}
	assert.Equal(t, model.StatusNew, older.Status)

	got, err := s.GetSubmission(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, older.ValidatedData, got.ValidatedData)
	assert.Equal(t, older.RawDataJSON, got.RawDataJSON)
	assert.Equal(t, older.Metadata, got.Metadata)
	assert.True(t, older.SubmittedAt.Equal(got.SubmittedAt))
	assert.Equal(t, model.StatusNew, got.Status)
	require.Len(t, got.ActionResults, 2)
	assert.Equal(t, model.ActionWebhook, got.ActionResults[0].ActionType)
	assert.True(t, got.ActionResults[0].Success)
	assert.False(t, got.ActionResults[1].Success)
	assert.Equal(t, "smtp down", got.ActionResults[1].ErrorMessage)

	list, err := s.ListSubmissions(ctx, SubmissionFilter{FormID: "form-1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sub-2", list[0].ID)
	assert.Equal(t, "sub-1", list[1].ID)
	assert.Len(t, list[0].ActionResults, 2)

	_, err = s.GetSubmission(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateSubmissionStatus(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := testRecord("sub-1", "form-1", time.Now())
	require.NoError(t, s.CreateSubmission(ctx, &rec))

	require.NoError(t, s.UpdateSubmissionStatus(ctx, "sub-1", model.StatusRead))
	got, err := s.GetSubmission(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRead, got.Status)

	read, err := s.ListSubmissions(ctx, SubmissionFilter{FormID: "form-1", Status: model.StatusRead})
	require.NoError(t, err)
	assert.Len(t, read, 1)
	unread, err := s.ListSubmissions(ctx, SubmissionFilter{FormID: "form-1", Status: model.StatusNew})
	require.NoError(t, err)
	assert.Empty(t, unread)

	assert.ErrorIs(t, s.UpdateSubmissionStatus(ctx, "missing", model.StatusRead), ErrNotFound)
	assert.Error(t, s.UpdateSubmissionStatus(ctx, "sub-1", "deleted"))
}

func TestCreateSubmissionRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO submission").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectPrepare("INSERT INTO submission_action_result").
		ExpectExec().
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	rec := testRecord("sub-1", "form-1", time.Now())
	err = NewStore(db).CreateSubmission(context.Background(), &rec)
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminCredentials(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.EnsureAdmin(ctx, "admin", "first"))
	require.NoError(t, s.CheckPassword(ctx, "admin", "first"))

	require.NoError(t, s.EnsureAdmin(ctx, "admin", "second"))
	assert.Error(t, s.CheckPassword(ctx, "admin", "first"))
	assert.NoError(t, s.CheckPassword(ctx, "admin", "second"))
	assert.Error(t, s.CheckPassword(ctx, "nobody", "second"))
}

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.EnsureAdmin(ctx, "admin", "pw"))

	require.NoError(t, s.StoreToken(ctx, "admin", "t1", "r1", time.Hour))
	assert.ErrorIs(t, s.ConsumeToken(ctx, "admin", "t1", "wrong"), ErrInvalidToken)
	assert.NoError(t, s.ConsumeToken(ctx, "admin", "t1", "r1"))
	// single use
	assert.ErrorIs(t, s.ConsumeToken(ctx, "admin", "t1", "r1"), ErrInvalidToken)

	require.NoError(t, s.StoreToken(ctx, "admin", "t2", "r2", time.Minute))
	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.ErrorIs(t, s.ConsumeToken(ctx, "admin", "t2", "r2"), ErrInvalidToken)
}
