package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vetclinic/vetclinic/internal/domain/appointment"
	"github.com/vetclinic/vetclinic/internal/domain/pet"
	"github.com/vetclinic/vetclinic/internal/platform/notification"
	"github.com/vetclinic/vetclinic/internal/platform/websocket"
)

type AppointmentSource interface {
	List(ctx context.Context, f appointment.Filter) ([]*appointment.Appointment, error)
}

type PetSource interface {
	List(ctx context.Context, ownerID string) ([]*pet.Pet, error)
}

type Sender interface {
	SendFromTemplate(ctx context.Context, templateID string, ch notification.Channel, data map[string]string, recipient string) (*notification.Message, error)
}

var (
	scansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vetclinic",
		Name:      "reminder_scans_total",
		Help:      "Reminder scans by outcome.",
	}, []string{"outcome"})
	notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vetclinic",
		Name:      "reminder_notifications_total",
		Help:      "New notifications raised by kind.",
	}, []string{"kind"})
	scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vetclinic",
		Name:      "reminder_scan_duration_seconds",
		Help:      "Time spent in one reminder scan.",
		Buckets:   prometheus.DefBuckets,
	})
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{scansTotal, notificationsTotal, scanDuration}
}

// Result summarises one scan.
type Result struct {
	Owners    int `json:"owners"`
	New       int `json:"new"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

type Poller struct {
	appts     AppointmentSource
	pets      PetSource
	feed      *Feed
	publisher websocket.Publisher
	sender    Sender
	logger    zerolog.Logger
	loc       *time.Location
	now       func() time.Time

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

type PollerConfig struct {
	Appointments AppointmentSource
	Pets         PetSource
	Feed         *Feed
	Publisher    websocket.Publisher
	Sender       Sender
	Logger       zerolog.Logger
	Location     *time.Location
}

func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Feed == nil {
		cfg.Feed = NewFeed()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Poller{
		appts:     cfg.Appointments,
		pets:      cfg.Pets,
		feed:      cfg.Feed,
		publisher: cfg.Publisher,
		sender:    cfg.Sender,
		logger:    cfg.Logger,
		loc:       cfg.Location,
		now:       time.Now,
	}
}

// Start runs RunOnce on schedule until ctx is done or Stop is called.
// Overlapping runs are skipped.
func (p *Poller) Start(ctx context.Context, schedule string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return fmt.Errorf("reminder poller already started")
	}

	clog := cronLogger{p.logger}
	c := cron.New(
		cron.WithLocation(p.loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	runCtx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(schedule, func() {
		if _, err := p.RunOnce(runCtx); err != nil {
			p.logger.Error().Err(err).Msg("reminder scan failed")
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("reminder schedule %q: %w", schedule, err)
	}
	c.Start()
	p.cron, p.cancel = c, cancel

	go func() {
		<-runCtx.Done()
		p.stop(c)
	}()
	p.logger.Info().Str("schedule", schedule).Msg("reminder poller started")
	return nil
}

// Stop cancels the running scan, if any, and waits for it to return.
func (p *Poller) Stop() { p.stop(nil) }

// stop halts the current cron, or only the given one when non-nil, so a
// stale watcher cannot stop a later Start.
func (p *Poller) stop(only *cron.Cron) {
	p.mu.Lock()
	c, cancel := p.cron, p.cancel
	if c == nil || (only != nil && c != only) {
		p.mu.Unlock()
		return
	}
	p.cron, p.cancel = nil, nil
	p.mu.Unlock()
	cancel()
	<-c.Stop().Done()
	p.logger.Info().Msg("reminder poller stopped")
}

// RunOnce scans every owner's records and delivers what is new since the
// previous scan.
func (p *Poller) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	defer func() { scanDuration.Observe(time.Since(start).Seconds()) }()

	var res Result
	appts, err := p.appts.List(ctx, appointment.Filter{})
	if err != nil {
		scansTotal.WithLabelValues("error").Inc()
		return res, fmt.Errorf("list appointments: %w", err)
	}
	pets, err := p.pets.List(ctx, "")
	if err != nil {
		scansTotal.WithLabelValues("error").Inc()
		return res, fmt.Errorf("list pets: %w", err)
	}

	now := p.now().In(p.loc)
	for _, owner := range ByOwner(appts, pets) {
		if err := ctx.Err(); err != nil {
			scansTotal.WithLabelValues("canceled").Inc()
			return res, err
		}
		if owner.OwnerID == "" {
			continue
		}
		res.Owners++
		fresh := p.feed.Record(owner.OwnerID, DeriveNotifications(owner.Appointments, owner.Pets, now))
		for _, n := range fresh {
			res.New++
			notificationsTotal.WithLabelValues(string(n.Kind)).Inc()
			p.publish(ctx, owner.OwnerID, n)
			switch sent, err := p.deliver(ctx, owner, n); {
			case err != nil:
				res.Failed++
				p.logger.Warn().Err(err).Str("notification_id", n.ID).Str("owner_id", owner.OwnerID).Msg("reminder delivery failed")
			case sent:
				res.Delivered++
			}
		}
	}
	scansTotal.WithLabelValues("ok").Inc()
	p.logger.Debug().Int("owners", res.Owners).Int("new", res.New).Int("delivered", res.Delivered).Msg("reminder scan complete")
	return res, nil
}

// publish sends n to the owner's topic.
func (p *Poller) publish(ctx context.Context, ownerID string, n Notification) {
	if p.publisher == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	ev := websocket.Event{
		Type:      "notification",
		Topic:     websocket.OwnerTopic(ownerID),
		ID:        n.ID,
		Timestamp: n.CreatedAt,
		Data:      data,
	}
	if err := p.publisher.Publish(ctx, ev); err != nil {
		p.logger.Warn().Err(err).Str("notification_id", n.ID).Msg("websocket publish failed")
	}
}

// deliver sends upcoming-appointment reminders by SMS when the booking has a
// phone number and by email otherwise; vaccination reminders go by email.
func (p *Poller) deliver(ctx context.Context, owner OwnerRecords, n Notification) (bool, error) {
	if p.sender == nil {
		return false, nil
	}
	email, _, name := owner.Contact()
	data := map[string]string{"owner_name": name, "pet_name": n.PetName}

	switch n.Kind {
	case KindAppointment:
		for _, a := range owner.Appointments {
			if a.ID != n.AppointmentID {
				continue
			}
			data["service"] = a.Service.Label()
			data["when"] = n.When
			data["owner_name"] = a.OwnerName
			if a.OwnerPhone != nil && *a.OwnerPhone != "" {
				_, err := p.sender.SendFromTemplate(ctx, notification.TemplateAppointmentReminder, notification.ChannelSMS, data, *a.OwnerPhone)
				return err == nil, err
			}
			if a.OwnerEmail == "" {
				return false, nil
			}
			_, err := p.sender.SendFromTemplate(ctx, notification.TemplateAppointmentReminder, notification.ChannelEmail, data, a.OwnerEmail)
			return err == nil, err
		}
	case KindVaccination:
		if email == "" {
			return false, nil
		}
		_, err := p.sender.SendFromTemplate(ctx, notification.TemplateVaccinationDue, notification.ChannelEmail, data, email)
		return err == nil, err
	}
	return false, nil
}

// cronLogger routes cron's key/value logging to zerolog.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
