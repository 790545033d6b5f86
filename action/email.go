package action

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
)

type Message struct {
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

// Sender delivers a rendered notification email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// EmailExecutor renders a plain-text notification listing every field of
// the submission and hands it to a Sender.
type EmailExecutor struct {
	sender Sender
}

func NewEmailExecutor(sender Sender) *EmailExecutor {
	return &EmailExecutor{sender: sender}
}

func (e *EmailExecutor) Execute(ctx context.Context, a model.Action, p Payload) error {
	cfg := a.Email
	if cfg == nil || len(cfg.To) == 0 {
		return errors.New("email recipients not configured")
	}
	if e.sender == nil {
		return errors.New("email delivery is not configured")
	}

	subject := cfg.Subject
	if subject == "" {
		subject = "New submission: " + p.FormName
	}
	msg := Message{
		To:      cfg.To,
		Subject: subject,
		Body:    renderBody(p),
	}
	if cfg.ReplyToField != "" {
		if s, ok := p.Data[cfg.ReplyToField].(string); ok && model.IsEmail(s) {
			msg.ReplyTo = s
		}
	}

	if err := e.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func renderBody(p Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New submission for %s\n\n", p.FormName)
	for _, f := range p.Fields {
		fmt.Fprintf(&b, "%s: %s\n", f.DisplayLabel(), formatValue(p.Data[f.Name]))
	}
	fmt.Fprintf(&b, "\nSubmission: %s\nSubmitted at: %s\n", p.SubmissionID, p.SubmittedAt.UTC().Format(time.RFC1123))
	if p.Metadata.Referrer != "" {
		fmt.Fprintf(&b, "Page: %s\n", p.Metadata.Referrer)
	}
	return b.String()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		if v == "" {
			return "-"
		}
		return v
	}
	return fmt.Sprint(v)
}

// SMTPSender delivers mail through an SMTP relay, upgrading to TLS when
// the server offers STARTTLS.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err = c.StartTLS(&tls.Config{ServerName: s.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.Username != "" {
		if err = c.Auth(smtp.PlainAuth("", s.Username, s.Password, s.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err = c.Mail(s.From); err != nil {
		return err
	}
	for _, rcpt := range msg.To {
		if err = c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(s.compose(msg)); err != nil {
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (s *SMTPSender) compose(msg Message) []byte {
	var b strings.Builder
	header := func(k, v string) {
		b.WriteString(k + ": " + stripNewlines(v) + "\r\n")
	}
	header("From", s.From)
	header("To", strings.Join(msg.To, ", "))
	if msg.ReplyTo != "" {
		header("Reply-To", msg.ReplyTo)
	}
	header("Subject", msg.Subject)
	header("Date", time.Now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=utf-8")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
