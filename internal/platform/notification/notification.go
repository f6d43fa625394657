// Package notification delivers clinic email and SMS messages with template
// rendering, in-memory delivery records, manual retry and admin handlers.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Channel is the transport a message is delivered over.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Delivery status values.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

var ErrNotFound = errors.New("notification: not found")

// Message is one outbound email or SMS and the outcome of its last attempt.
type Message struct {
	ID           string            `json:"id"`
	Channel      Channel           `json:"channel"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	Attempts     int               `json:"attempts"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

var deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vetclinic",
	Name:      "notification_deliveries_total",
	Help:      "Outbound notification attempts by channel and outcome.",
}, []string{"channel", "status"})

// Collectors exposes the package metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{deliveries}
}

// Manager sends messages and keeps the record of each attempt so failed ones
// can be retried by hand.
type Manager struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	messages map[string]*Message
}

func NewManager(email EmailSender, sms SMSSender, tpl *TemplateEngine, logger zerolog.Logger) *Manager {
	if tpl == nil {
		tpl = NewTemplateEngine()
	}
	return &Manager{
		email:     email,
		sms:       sms,
		templates: tpl,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		messages:  make(map[string]*Message),
	}
}

func (m *Manager) deliver(ctx context.Context, msg *Message) error {
	switch msg.Channel {
	case ChannelEmail:
		if m.email == nil {
			return fmt.Errorf("no email sender configured")
		}
		return m.email.SendEmail(ctx, msg.Recipient, msg.Subject, msg.Body)
	case ChannelSMS:
		if m.sms == nil {
			return fmt.Errorf("no sms sender configured")
		}
		return m.sms.SendSMS(ctx, msg.Recipient, msg.Body)
	}
	return fmt.Errorf("unsupported channel: %s", msg.Channel)
}

// attempt delivers msg and records the outcome. Callers hold no lock.
func (m *Manager) attempt(ctx context.Context, msg *Message) error {
	err := m.deliver(ctx, msg)

	m.mu.Lock()
	msg.Attempts++
	if err != nil {
		msg.Status = StatusFailed
		msg.Error = err.Error()
	} else {
		msg.Status = StatusSent
		sentAt := m.now()
		msg.SentAt = &sentAt
		msg.Error = ""
	}
	status, attempts := msg.Status, msg.Attempts
	m.mu.Unlock()

	deliveries.WithLabelValues(string(msg.Channel), status).Inc()
	ev := m.logger.Info()
	if err != nil {
		ev = m.logger.Warn().Err(err)
	}
	ev.Str("message_id", msg.ID).
		Str("channel", string(msg.Channel)).
		Str("template_id", msg.TemplateID).
		Int("attempts", attempts).
		Msg("notification delivery")
	return err
}

// Send assigns an id and delivers msg once. The message is recorded whether or
// not delivery succeeded.
func (m *Manager) Send(ctx context.Context, msg *Message) error {
	if msg.Recipient == "" {
		return fmt.Errorf("recipient required")
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = m.now()
	msg.Status = StatusPending

	m.mu.Lock()
	m.messages[msg.ID] = msg
	m.mu.Unlock()

	return m.attempt(ctx, msg)
}

// SendFromTemplate renders templateID with data and sends it over ch.
func (m *Manager) SendFromTemplate(ctx context.Context, templateID string, ch Channel, data map[string]string, recipient string) (*Message, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	msg := &Message{
		Channel:      ch,
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}
	return msg, m.Send(ctx, msg)
}

func (m *Manager) Get(_ context.Context, id string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

// List returns messages newest first, optionally only those with status.
func (m *Manager) List(_ context.Context, status string) []*Message {
	m.mu.RLock()
	out := make([]*Message, 0, len(m.messages))
	for _, msg := range m.messages {
		if status == "" || msg.Status == status {
			cp := *msg
			out = append(out, &cp)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Retry re-sends a failed message. Messages in any other state are refused.
func (m *Manager) Retry(ctx context.Context, id string) error {
	m.mu.RLock()
	msg, ok := m.messages[id]
	var status string
	if ok {
		status = msg.Status
	}
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if status != StatusFailed {
		return fmt.Errorf("notification %q is not in failed status (current: %s)", id, status)
	}
	return m.attempt(ctx, msg)
}

// Stats counts messages by status.
func (m *Manager) Stats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for _, msg := range m.messages {
		stats[msg.Status]++
	}
	return stats
}
