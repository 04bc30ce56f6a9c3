// Package notification renders outbound e-mail from templates and hands the
// result to a Sender. Delivery itself happens elsewhere: SQSSender queues a
// JSON message for the mail worker and LogSender just logs it.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Template IDs.
const (
	TemplateUserInvite     = "user-invite"
	TemplateInviteAccepted = "invite-accepted"
)

// Message is a single outbound notification.
type Message struct {
	ID           string            `json:"id"`
	Channel      string            `json:"channel"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateUserInvite,
			Subject: "You have been invited to {{clinic}}",
			Body:    "You were invited to join {{clinic}} as {{role}}. Accept the invite before {{expires_at}}: {{link}}",
		},
		{
			ID:      TemplateInviteAccepted,
			Subject: "{{name}} accepted your invite",
			Body:    "{{name}} ({{email}}) accepted the invite and joined as {{role}}.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// Notifier renders templates and sends the result.
type Notifier struct {
	sender    Sender
	templates *TemplateEngine
	now       func() time.Time
}

func NewNotifier(sender Sender, tpl *TemplateEngine) *Notifier {
	if tpl == nil {
		tpl = NewTemplateEngine()
	}
	return &Notifier{sender: sender, templates: tpl, now: time.Now}
}

// SendFromTemplate renders templateID with data and sends it to recipient.
// The rendered message is returned even when delivery fails.
func (n *Notifier) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Message, error) {
	if recipient == "" {
		return nil, errors.New("recipient is required")
	}
	subject, body, err := n.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	msg := &Message{
		ID:           uuid.New().String(),
		Channel:      "email",
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
		CreatedAt:    n.now().UTC(),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return msg, fmt.Errorf("send %s to %s: %w", templateID, recipient, err)
	}
	return msg, nil
}

// LogSender writes messages to the log instead of delivering them. It is the
// fallback when no queue is configured.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg *Message) error {
	s.logger.Info().
		Str("notification_id", msg.ID).
		Str("template", msg.TemplateID).
		Str("recipient", msg.Recipient).
		Str("subject", msg.Subject).
		Msg("notification not delivered: no queue configured")
	return nil
}

// MockSender is a test double for Sender.
type MockSender struct {
	mu         sync.Mutex
	calls      []*Message
	ShouldFail bool
	FailError  string
}

// Send records the call and optionally returns an error.
func (m *MockSender) Send(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, msg)
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded messages.
func (m *MockSender) Calls() []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Message, len(m.calls))
	copy(out, m.calls)
	return out
}
