package action

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
)

func TestWebhookExecutor_Posts(t *testing.T) {
	var got Payload
	var header http.Header
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		raw, _ = io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	a := model.Action{Kind: model.ActionWebhook, Webhook: &model.WebhookAction{
		URL:     srv.URL,
		Headers: map[string]string{"X-Api-Key": "k1"},
		Secret:  "s3cret",
	}}
	err := NewWebhookExecutor(srv.Client()).Execute(context.Background(), a, testPayload())
	require.NoError(t, err)

	assert.Equal(t, "sub-1", got.SubmissionID)
	assert.Equal(t, "ada@example.com", got.Data["email"])
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, "k1", header.Get("X-Api-Key"))
	assert.Equal(t, "sha256="+Sign("s3cret", raw), header.Get(SignatureHeader))
}

func TestWebhookExecutor_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	a := model.Action{Kind: model.ActionWebhook, Webhook: &model.WebhookAction{URL: srv.URL, Method: http.MethodPut}}
	err := NewWebhookExecutor(nil).Execute(context.Background(), a, testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestWebhookExecutor_MissingURL(t *testing.T) {
	err := NewWebhookExecutor(nil).Execute(context.Background(), model.Action{Kind: model.ActionWebhook}, testPayload())
	assert.EqualError(t, err, "webhook url not configured")
}
