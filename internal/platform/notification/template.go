package notification

import (
	"fmt"
	"strings"
	"sync"
)

const (
	TemplateBookingConfirmation = "appointment-confirmation"
	TemplateAppointmentReminder = "appointment-reminder"
	TemplateVaccinationDue      = "vaccination-due"
)

type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine renders {{key}} placeholders. Keys missing from the data are
// left in place.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for _, t := range []Template{
		{
			ID:      TemplateBookingConfirmation,
			Name:    "Appointment Confirmation",
			Subject: "Your {{service}} appointment for {{pet_name}}",
			Body: "Hi {{owner_name}}, we received your booking for {{pet_name}}: {{service}} on {{date}} " +
				"({{time_slot}}). Reason: {{reason}}. We will confirm shortly.",
		},
		{
			ID:      TemplateAppointmentReminder,
			Name:    "Appointment Reminder",
			Subject: "Reminder: {{pet_name}}'s {{service}} appointment",
			Body:    "Hi {{owner_name}}, {{pet_name}}'s {{service}} appointment {{when}}.",
		},
		{
			ID:      TemplateVaccinationDue,
			Name:    "Vaccination Due",
			Subject: "{{pet_name}} is due for vaccination",
			Body:    "Hi {{owner_name}}, {{pet_name}} has no vaccination on record in the last year. Book one any time.",
		},
	} {
		t := t
		e.templates[t.ID] = &t
	}
	return e
}

func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}
