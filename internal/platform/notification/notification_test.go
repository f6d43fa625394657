package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/vetclinic/vetclinic/internal/domain/appointment"
)

type emailCall struct {
	To, Subject, Body string
}

type mockEmailSender struct {
	mu    sync.Mutex
	calls []emailCall
	err   error
}

func (m *mockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, emailCall{to, subject, body})
	return m.err
}

type mockSMSSender struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (m *mockSMSSender) SendSMS(_ context.Context, to, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, to)
	return m.err
}

func newTestManager(email EmailSender, sms SMSSender) *Manager {
	return NewManager(email, sms, NewTemplateEngine(), zerolog.Nop())
}

func TestTemplateEngine_ClinicTemplates(t *testing.T) {
	eng := NewTemplateEngine()
	subject, body, err := eng.Render(TemplateBookingConfirmation, map[string]string{
		"owner_name": "Dana",
		"pet_name":   "Bella",
		"service":    "Vaccination",
		"date":       "2026-03-11",
		"time_slot":  "09:00 AM",
		"reason":     "annual shots",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Your Vaccination appointment for Bella" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "2026-03-11 (09:00 AM)") {
		t.Errorf("body = %q", body)
	}
	for _, id := range []string{TemplateAppointmentReminder, TemplateVaccinationDue} {
		if _, _, err := eng.Render(id, nil); err != nil {
			t.Errorf("template %q missing: %v", id, err)
		}
	}
}

func TestTemplateEngine_MissingKeyLeftInPlace(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{ID: "t", Subject: "Hi {{name}}", Body: "{{code}} {{token}}"})
	_, body, err := eng.Render("t", map[string]string{"code": "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "1 {{token}}" {
		t.Errorf("body = %q", body)
	}
	if _, _, err := eng.Render("nope", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestManager_SendRecordsOutcome(t *testing.T) {
	email := &mockEmailSender{}
	m := newTestManager(email, nil)
	msg := &Message{Channel: ChannelEmail, Recipient: "a@example.com", Subject: "s", Body: "b"}

	if err := m.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := m.Get(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusSent || got.SentAt == nil || got.Attempts != 1 {
		t.Errorf("unexpected record: %+v", got)
	}
	if len(email.calls) != 1 || email.calls[0].To != "a@example.com" {
		t.Errorf("unexpected email calls: %+v", email.calls)
	}
}

func TestManager_SendWithoutSender(t *testing.T) {
	m := newTestManager(nil, nil)
	err := m.Send(context.Background(), &Message{Channel: ChannelSMS, Recipient: "+1555"})
	if err == nil {
		t.Fatal("expected error without sms sender")
	}
	if stats := m.Stats(context.Background()); stats[StatusFailed] != 1 {
		t.Errorf("expected 1 failed, got %v", stats)
	}
}

func TestManager_RetryFailed(t *testing.T) {
	sms := &mockSMSSender{err: errors.New("carrier down")}
	m := newTestManager(nil, sms)
	ctx := context.Background()
	msg, err := m.SendFromTemplate(ctx, TemplateAppointmentReminder, ChannelSMS, map[string]string{"pet_name": "Rex"}, "+15550100")
	if err == nil {
		t.Fatal("expected delivery error")
	}

	sms.err = nil
	if err := m.Retry(ctx, msg.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	got, _ := m.Get(ctx, msg.ID)
	if got.Status != StatusSent || got.Attempts != 2 || got.Error != "" {
		t.Errorf("unexpected record after retry: %+v", got)
	}

	if err := m.Retry(ctx, msg.ID); err == nil {
		t.Error("expected retry of a sent message to be refused")
	}
	if err := m.Retry(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_ListFiltersByStatus(t *testing.T) {
	email := &mockEmailSender{}
	m := newTestManager(email, nil)
	ctx := context.Background()
	_ = m.Send(ctx, &Message{Channel: ChannelEmail, Recipient: "a@example.com"})
	email.err = errors.New("boom")
	_ = m.Send(ctx, &Message{Channel: ChannelEmail, Recipient: "b@example.com"})

	if got := m.List(ctx, ""); len(got) != 2 {
		t.Errorf("expected 2, got %d", len(got))
	}
	failed := m.List(ctx, StatusFailed)
	if len(failed) != 1 || failed[0].Recipient != "b@example.com" {
		t.Errorf("unexpected failed list: %+v", failed)
	}
}

func TestBookingConfirmer_SendsToOwner(t *testing.T) {
	email := &mockEmailSender{}
	c := NewBookingConfirmer(newTestManager(email, nil))
	a := &appointment.Appointment{
		OwnerName:  "Dana",
		OwnerEmail: "dana@example.com",
		PetName:    "Bella",
		Service:    appointment.ServiceVaccination,
		Date:       time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		TimeSlot:   appointment.SlotMorning,
	}
	if err := c.SendConfirmation(context.Background(), a); err != nil {
		t.Fatalf("SendConfirmation: %v", err)
	}
	if len(email.calls) != 1 {
		t.Fatalf("expected 1 email, got %d", len(email.calls))
	}
	call := email.calls[0]
	if call.To != "dana@example.com" {
		t.Errorf("unexpected recipient %q", call.To)
	}
	if !strings.Contains(call.Body, "Reason: not specified") || !strings.Contains(call.Body, "09:00 AM") {
		t.Errorf("unexpected body %q", call.Body)
	}
}

func TestHTTPEmailSender(t *testing.T) {
	var got emailPayload
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPEmailSender(srv.URL, "key-123", "clinic@example.com")
	if err := s.SendEmail(context.Background(), "dana@example.com", "Hi", "Body"); err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if authHeader != "Bearer key-123" {
		t.Errorf("unexpected auth header %q", authHeader)
	}
	if got.From != "clinic@example.com" || got.To != "dana@example.com" || got.Text != "Body" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestHTTPEmailSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewHTTPEmailSender(srv.URL, "k", "f").SendEmail(context.Background(), "a", "b", "c")
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("expected error with body, got %v", err)
	}
}

type fakeTwilio struct {
	params *twilioApi.CreateMessageParams
	err    error
}

func (f *fakeTwilio) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = p
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSMSSender(t *testing.T) {
	fake := &fakeTwilio{}
	s := &TwilioSMSSender{api: fake, from: "+15550000", logger: zerolog.Nop()}
	if err := s.SendSMS(context.Background(), "+15550100", "hello"); err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
	if *fake.params.To != "+15550100" || *fake.params.From != "+15550000" || *fake.params.Body != "hello" {
		t.Errorf("unexpected params: %+v", fake.params)
	}

	fake.err = errors.New("21211 invalid number")
	if err := s.SendSMS(context.Background(), "bad", "x"); err == nil {
		t.Error("expected error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SendSMS(ctx, "+1", "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHandler_RetryAndStats(t *testing.T) {
	email := &mockEmailSender{err: errors.New("down")}
	m := newTestManager(email, nil)
	msg := &Message{Channel: ChannelEmail, Recipient: "a@example.com"}
	_ = m.Send(context.Background(), msg)
	h := NewHandler(m)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(msg.ID)
	email.err = nil
	if err := h.Retry(c); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := h.Stats(c); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	var stats map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats[StatusSent] != 1 {
		t.Errorf("expected 1 sent, got %v", stats)
	}
}

func TestHandler_RetryMissing(t *testing.T) {
	h := NewHandler(newTestManager(nil, nil))
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")
	err := h.Retry(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
