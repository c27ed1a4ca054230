// Package appointments stores finished bookings and serves the patient's
// lookup and cancellation requests.
package appointments

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/napryag/clinic_booking_bot/pkg/domain/booking"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/napryag/clinic_booking_bot/pkg/utils/metrics"
	"github.com/rs/zerolog"
)

const (
	MsgReasonRequired = "Please provide a reason for cancellation"
	MsgNotCancellable = "appointment is not cancellable"
)

// ListingLayout is how appointment times are shown in lookups.
const ListingLayout = "Jan 2, 2006 03:04 PM"

// Notifier tells clinic staff about booking changes.
type Notifier interface {
	NotifyBooked(ctx context.Context, appt model.Appointment) error
	NotifyCancelled(ctx context.Context, appt model.Appointment) error
}

type Config struct {
	SupportPhone string
	Location     *time.Location
}

type Service struct {
	store    model.RecordStore
	notifier Notifier
	metrics  *metrics.BookingMetrics
	cfg      Config
	logger   zerolog.Logger
}

// New builds the service. notifier and m may be nil.
func New(store model.RecordStore, notifier Notifier, m *metrics.BookingMetrics, cfg Config, logger zerolog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		store:    store,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		logger:   logger.With().Str("component", "appointments").Logger(),
	}
}

// Submit creates the appointment record and returns its stored id.
func (s *Service) Submit(ctx context.Context, appt model.Appointment) (string, error) {
	rec, err := model.Encode(appt)
	if err != nil {
		return "", err
	}
	created, err := s.store.Create(ctx, model.CollectionAppointments, rec)
	if err != nil {
		s.metrics.ObserveBooking("failed", appt.PaymentMethod)
		return "", errs.New("failed to create appointment").Arg("doctor", appt.DoctorID).Wrap(err)
	}
	s.metrics.ObserveBooking("ok", appt.PaymentMethod)

	if id := created.ID(); id != "" {
		appt.ID = id
	}
	s.logger.Info().Str("appointment", appt.ID).Str("doctor", appt.DoctorID).Str("date", appt.AppointmentDate).Msg("appointment created")
	s.notify(ctx, appt, s.notifierBooked)
	return appt.ID, nil
}

// LookupByEmail lists the appointments booked with exactly this email, in
// store order.
func (s *Service) LookupByEmail(ctx context.Context, email string) ([]model.Appointment, error) {
	email = strings.TrimSpace(email)
	if !booking.ValidEmail(email) {
		s.metrics.ObserveLookup("invalid")
		return nil, errs.Validation(booking.MsgInvalidEmail).Arg("email", email)
	}

	recs, err := s.store.List(ctx, model.CollectionAppointments, url.Values{"search": {email}})
	if err != nil && !errs.Is(err, errs.KindNotFound) {
		s.metrics.ObserveLookup("failed")
		return nil, errs.New("failed to look up appointments").Wrap(err)
	}

	out := make([]model.Appointment, 0, len(recs))
	for _, rec := range recs {
		a, err := model.Decode[model.Appointment](rec)
		if err != nil {
			s.logger.Warn().Err(err).Str("id", rec.ID()).Msg("skipping malformed appointment")
			continue
		}
		if a.PatientEmail == email {
			out = append(out, a)
		}
	}
	s.metrics.ObserveLookup("ok")
	return out, nil
}

// Cancel marks a scheduled appointment as cancelled with the given reason.
func (s *Service) Cancel(ctx context.Context, id, reason string) (model.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		s.metrics.ObserveCancellation("invalid")
		return model.Appointment{}, errs.Validation(MsgReasonRequired).Arg("id", id)
	}

	rec, err := s.store.Get(ctx, model.CollectionAppointments, id)
	if err != nil {
		s.metrics.ObserveCancellation("failed")
		return model.Appointment{}, errs.New("failed to load appointment").Arg("id", id).Wrap(err)
	}
	current, err := model.Decode[model.Appointment](rec)
	if err != nil {
		s.metrics.ObserveCancellation("failed")
		return model.Appointment{}, err
	}
	if !current.Cancellable() {
		s.metrics.ObserveCancellation("rejected")
		return current, errs.Conflict(MsgNotCancellable).Arg("id", id).Arg("status", current.Status)
	}

	patched, err := s.store.Patch(ctx, model.CollectionAppointments, id, model.Record{
		"status":              model.AppointmentCancelled,
		"cancellation_reason": reason,
	})
	if err != nil {
		s.metrics.ObserveCancellation("failed")
		return model.Appointment{}, errs.New("failed to cancel appointment").Arg("id", id).Wrap(err)
	}
	updated, err := model.Decode[model.Appointment](patched)
	if err != nil {
		return model.Appointment{}, err
	}
	s.metrics.ObserveCancellation("ok")
	s.logger.Info().Str("appointment", id).Msg("appointment cancelled")
	s.notify(ctx, updated, s.notifierCancelled)
	return updated, nil
}

// Reschedule is not self-service; the patient is pointed to the clinic.
func (s *Service) Reschedule(_ context.Context, id string) error {
	return errs.Unsupported(fmt.Sprintf("Please contact us at %s to reschedule", s.cfg.SupportPhone)).Arg("id", id)
}

// When formats the appointment time for listings in the clinic time zone.
// The raw date is returned when it cannot be parsed.
func (s *Service) When(a model.Appointment) string {
	t, err := time.Parse(time.RFC3339, a.AppointmentDate)
	if err != nil {
		return a.AppointmentDate
	}
	return t.In(s.cfg.Location).Format(ListingLayout)
}

func (s *Service) notifierBooked(ctx context.Context, a model.Appointment) error {
	return s.notifier.NotifyBooked(ctx, a)
}

func (s *Service) notifierCancelled(ctx context.Context, a model.Appointment) error {
	return s.notifier.NotifyCancelled(ctx, a)
}

// notify never fails the caller; staff notices are best effort.
func (s *Service) notify(ctx context.Context, a model.Appointment, send func(context.Context, model.Appointment) error) {
	if s.notifier == nil {
		return
	}
	if err := send(ctx, a); err != nil {
		s.logger.Error().Err(err).Str("appointment", a.ID).Msg("staff notification failed")
	}
}
