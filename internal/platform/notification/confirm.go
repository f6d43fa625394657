package notification

import (
	"context"
	"time"

	"github.com/vetclinic/vetclinic/internal/domain/appointment"
)

// BookingConfirmer emails the owner once a booking is stored.
type BookingConfirmer struct {
	manager *Manager
}

func NewBookingConfirmer(m *Manager) *BookingConfirmer {
	return &BookingConfirmer{manager: m}
}

func (b *BookingConfirmer) SendConfirmation(ctx context.Context, a *appointment.Appointment) error {
	reason := "not specified"
	if a.Reason != nil && *a.Reason != "" {
		reason = *a.Reason
	}
	data := map[string]string{
		"owner_name": a.OwnerName,
		"pet_name":   a.PetName,
		"service":    a.Service.Label(),
		"date":       a.Date.Format(time.DateOnly),
		"time_slot":  a.TimeSlot.Display(),
		"reason":     reason,
	}
	_, err := b.manager.SendFromTemplate(ctx, TemplateBookingConfirmation, ChannelEmail, data, a.OwnerEmail)
	return err
}
