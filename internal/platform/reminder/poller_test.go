package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetclinic/vetclinic/internal/domain/appointment"
	"github.com/vetclinic/vetclinic/internal/domain/pet"
	"github.com/vetclinic/vetclinic/internal/platform/auth"
	"github.com/vetclinic/vetclinic/internal/platform/notification"
	"github.com/vetclinic/vetclinic/internal/platform/websocket"
)

type stubAppointments struct {
	items []*appointment.Appointment
	err   error
	calls atomic.Int32
}

func (s *stubAppointments) List(_ context.Context, f appointment.Filter) ([]*appointment.Appointment, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	var out []*appointment.Appointment
	for _, a := range s.items {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubPets struct {
	items []*pet.Pet
}

func (s *stubPets) List(_ context.Context, ownerID string) ([]*pet.Pet, error) {
	var out []*pet.Pet
	for _, p := range s.items {
		if ownerID == "" || p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

type sent struct {
	Template  string
	Channel   notification.Channel
	Recipient string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (r *recordingSender) SendFromTemplate(_ context.Context, id string, ch notification.Channel, _ map[string]string, to string) (*notification.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{id, ch, to})
	return &notification.Message{}, r.err
}

func TestFeed_RecordReturnsOnlyNew(t *testing.T) {
	f := NewFeed()
	first := []Notification{{ID: "appointment-1"}, {ID: PromoID}}

	assert.Len(t, f.Record("o1", first), 2)
	assert.Empty(t, f.Record("o1", first))
	assert.Len(t, f.Record("o2", first), 2, "owners are tracked separately")

	assert.Empty(t, f.Record("o1", []Notification{{ID: PromoID}}))
	again := f.Record("o1", first)
	require.Len(t, again, 1, "lapsed reminder comes back")
	assert.Equal(t, "appointment-1", again[0].ID)
}

func TestFeed_DismissHidesAndSuppresses(t *testing.T) {
	f := NewFeed()
	f.Dismiss("o1", PromoID)

	fresh := f.Record("o1", []Notification{{ID: PromoID}, {ID: "vaccination-p1"}})
	require.Len(t, fresh, 1)
	assert.Equal(t, "vaccination-p1", fresh[0].ID)

	visible := f.Visible("o1", []Notification{{ID: PromoID}, {ID: "vaccination-p1"}, {ID: "vaccination-p1"}})
	require.Len(t, visible, 1)
	assert.Equal(t, "o1", visible[0].OwnerID)
}

func newTestPoller(appts *stubAppointments, pets *stubPets, sender Sender, pub websocket.Publisher) *Poller {
	p := NewPoller(PollerConfig{
		Appointments: appts,
		Pets:         pets,
		Publisher:    pub,
		Sender:       sender,
		Logger:       zerolog.Nop(),
	})
	p.now = func() time.Time { return evening }
	return p
}

func TestPoller_RunOnceDeliversOnce(t *testing.T) {
	withPhone := booking("a1", evening.AddDate(0, 0, 1), appointment.SlotMorning)
	phone := "+15550100"
	withPhone.OwnerPhone = &phone
	emailOnly := booking("a2", evening.AddDate(0, 0, 1), appointment.SlotAfternoon)
	emailOnly.OwnerID = "owner-2"
	emailOnly.OwnerEmail = "sam@example.com"

	appts := &stubAppointments{items: []*appointment.Appointment{withPhone, emailOnly}}
	pets := &stubPets{items: []*pet.Pet{sixMonthOld()}}
	sender := &recordingSender{}
	hub := websocket.NewHub(zerolog.Nop())
	client := websocket.NewClient("owner-1", false)
	hub.Register(client)

	p := newTestPoller(appts, pets, sender, hub)
	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	// owner-1: appointment, vaccination, promo. owner-2: appointment.
	assert.Equal(t, Result{Owners: 2, New: 4, Delivered: 3}, res)
	assert.ElementsMatch(t, []sent{
		{notification.TemplateAppointmentReminder, notification.ChannelSMS, phone},
		{notification.TemplateVaccinationDue, notification.ChannelEmail, "dana@example.com"},
		{notification.TemplateAppointmentReminder, notification.ChannelEmail, "sam@example.com"},
	}, sender.sent)
	assert.Len(t, client.Send, 3)

	res, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.New, "second scan raises nothing new")
	assert.Len(t, sender.sent, 3)
}

func TestPoller_DeliveryFailureCounted(t *testing.T) {
	appts := &stubAppointments{items: []*appointment.Appointment{booking("a1", evening.AddDate(0, 0, 1), appointment.SlotMorning)}}
	sender := &recordingSender{err: errors.New("smtp down")}
	p := newTestPoller(appts, &stubPets{}, sender, nil)

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Delivered)
}

func TestPoller_SourceError(t *testing.T) {
	p := newTestPoller(&stubAppointments{err: errors.New("db gone")}, &stubPets{}, nil, nil)
	_, err := p.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestPoller_CanceledContext(t *testing.T) {
	appts := &stubAppointments{items: []*appointment.Appointment{booking("a1", evening.AddDate(0, 0, 1), appointment.SlotMorning)}}
	p := newTestPoller(appts, &stubPets{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoller_StartStop(t *testing.T) {
	appts := &stubAppointments{}
	p := newTestPoller(appts, &stubPets{}, nil, nil)

	require.Error(t, p.Start(context.Background(), "not a schedule"))
	require.NoError(t, p.Start(context.Background(), "@every 1s"))
	require.Error(t, p.Start(context.Background(), "@every 1s"), "double start")

	assert.Eventually(t, func() bool { return appts.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	p.Stop()
	p.Stop()
	n := appts.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, n, appts.calls.Load(), "no scans after Stop")
}

func TestPoller_StopsWithContext(t *testing.T) {
	p := newTestPoller(&stubAppointments{}, &stubPets{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx, "@every 1h"))
	cancel()

	assert.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.cron == nil
	}, time.Second, 10*time.Millisecond)
}

func TestHandler_ListAndDismiss(t *testing.T) {
	appts := &stubAppointments{items: []*appointment.Appointment{booking("a1", evening.AddDate(0, 0, 1), appointment.SlotMorning)}}
	pets := &stubPets{items: []*pet.Pet{sixMonthOld()}}
	feed := NewFeed()
	h := NewHandler(appts, pets, feed, time.UTC)
	h.now = func() time.Time { return evening }
	e := echo.New()

	list := func(user string) listResponse {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), user, "", "", []string{auth.RoleCustomer}))
		rec := httptest.NewRecorder()
		require.NoError(t, h.List(e.NewContext(req, rec)))
		var resp listResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	assert.Equal(t, 3, list("owner-1").Total)
	assert.Equal(t, 0, list("owner-2").Total)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), "owner-1", "", "", []string{auth.RoleCustomer}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(PromoID)
	require.NoError(t, h.Dismiss(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	resp := list("owner-1")
	assert.Equal(t, 2, resp.Total)
	for _, n := range resp.Data {
		assert.NotEqual(t, PromoID, n.ID)
	}
}

func TestPoller_RestartSurvivesEarlierWatcher(t *testing.T) {
	p := newTestPoller(&stubAppointments{}, &stubPets{}, nil, nil)
	require.NoError(t, p.Start(context.Background(), "@every 1h"))
	p.Stop()
	require.NoError(t, p.Start(context.Background(), "@every 1h"))
	defer p.Stop()

	assert.Never(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.cron == nil
	}, 200*time.Millisecond, 10*time.Millisecond)
}
