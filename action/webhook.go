package action

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
)

const (
	SignatureHeader = "X-Signature-256"
	maxErrorBody    = 512
)

// WebhookExecutor posts the submission payload as JSON to the configured URL.
type WebhookExecutor struct {
	client *http.Client
}

func NewWebhookExecutor(client *http.Client) *WebhookExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookExecutor{client: client}
}

func (e *WebhookExecutor) Execute(ctx context.Context, a model.Action, p Payload) error {
	cfg := a.Webhook
	if cfg == nil || cfg.URL == "" {
		return errors.New("webhook url not configured")
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if cfg.Secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(cfg.Secret, body))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
