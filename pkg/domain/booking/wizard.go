package booking

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/napryag/clinic_booking_bot/pkg/utils/metrics"
	"github.com/rs/zerolog"
)

// MsgBusy is returned while another action on the same session is running.
const MsgBusy = "Your previous action is still being processed"

// maxChain bounds how many effect results one dispatch may feed back.
const maxChain = 8

// Catalog loads the selectable departments and doctors.
type Catalog interface {
	ActiveDepartments(ctx context.Context) ([]model.Department, error)
	ActiveDoctors(ctx context.Context, departmentID string) ([]model.Doctor, error)
}

// Submitter persists a finished booking and returns the stored id.
type Submitter interface {
	Submit(ctx context.Context, appt model.Appointment) (string, error)
}

// Outcome is the result of one dispatch.
type Outcome struct {
	Session Session
	// Submitted is set when the dispatch stored an appointment; Session has
	// then been reset for a new booking.
	Submitted     bool
	AppointmentID string
	Appointment   *model.Appointment
	Ignored       []Ignored
}

// Wizard runs the machine for front ends: it executes effects, feeds their
// results back and keeps a session from being driven twice at once.
type Wizard struct {
	machine   *Machine
	catalog   Catalog
	submitter Submitter
	logger    zerolog.Logger
	metrics   *metrics.BookingMetrics

	mu   sync.Mutex
	busy map[string]struct{}
}

func NewWizard(machine *Machine, catalog Catalog, submitter Submitter, logger zerolog.Logger, m *metrics.BookingMetrics) *Wizard {
	return &Wizard{
		machine:   machine,
		catalog:   catalog,
		submitter: submitter,
		logger:    logger.With().Str("component", "wizard").Logger(),
		metrics:   m,
		busy:      make(map[string]struct{}),
	}
}

// Begin creates a session and loads the departments for step one.
func (w *Wizard) Begin(ctx context.Context, id string) (Outcome, error) {
	if id == "" {
		id = uuid.NewString()
	}
	return w.Dispatch(ctx, NewSession(id), Start{})
}

// Dispatch applies ev to s. On any error the returned outcome carries s as
// it was before the call, so the user can retry without re-entering data.
func (w *Wizard) Dispatch(ctx context.Context, s Session, ev Event) (Outcome, error) {
	var out Outcome
	err := w.Guard(s.ID, ev.Name(), func() error {
		var err error
		out, err = w.Run(ctx, s, ev)
		return err
	})
	if err != nil {
		return Outcome{Session: s}, err
	}
	return out, nil
}

// Guard holds the busy flag of session id while fn runs. Front ends that
// load and save sessions themselves wrap the whole load, Run and save
// sequence in it. A second caller for the same id gets a Busy error instead
// of waiting.
func (w *Wizard) Guard(id, action string, fn func() error) error {
	if !w.acquire(id) {
		w.metrics.ObserveTransition(action, errs.KindBusy.String())
		return errs.Busy(MsgBusy).Arg("session", id)
	}
	defer w.release(id)
	return fn()
}

// Run is Dispatch for callers already inside Guard for s.ID.
func (w *Wizard) Run(ctx context.Context, s Session, ev Event) (Outcome, error) {
	out, err := w.run(ctx, s, ev)
	result := "ok"
	if err != nil {
		result = errs.KindOf(err).String()
		w.logger.Debug().Err(err).Str("session", s.ID).Str("event", ev.Name()).Msg("transition rejected")
		out = Outcome{Session: s}
	}
	w.metrics.ObserveTransition(ev.Name(), result)
	return out, err
}

func (w *Wizard) run(ctx context.Context, s Session, ev Event) (Outcome, error) {
	var out Outcome
	queue := []Event{ev}

	for i := 0; len(queue) > 0; i++ {
		if i == maxChain {
			return out, errs.New("too many chained effects").Arg("event", ev.Name())
		}
		next := queue[0]
		queue = queue[1:]

		var (
			effects []Effect
			err     error
		)
		s, effects, err = w.machine.Apply(s, next)
		if err != nil {
			return out, err
		}

		for _, eff := range effects {
			res, err := w.execute(ctx, s, eff, &out)
			if err != nil {
				return out, err
			}
			if res != nil {
				queue = append(queue, res)
			}
		}
	}

	out.Session = s
	return out, nil
}

func (w *Wizard) execute(ctx context.Context, s Session, eff Effect, out *Outcome) (Event, error) {
	switch e := eff.(type) {
	case LoadDepartments:
		depts, err := w.catalog.ActiveDepartments(ctx)
		if err != nil && out.Submitted {
			// the appointment is stored; the new session starts without a list
			w.logger.Warn().Err(err).Str("session", s.ID).Msg("reload departments after booking")
			return nil, nil
		}
		if err != nil {
			return nil, errs.New("No departments available").Wrap(err)
		}
		return DepartmentsLoaded{Departments: depts}, nil

	case LoadDoctors:
		docs, err := w.catalog.ActiveDoctors(ctx, e.DepartmentID)
		if err != nil {
			return nil, errs.New("No doctors available").Arg("department", e.DepartmentID).Wrap(err)
		}
		return DoctorsLoaded{DepartmentID: e.DepartmentID, Doctors: docs}, nil

	case SubmitAppointment:
		id, err := w.submitter.Submit(ctx, e.Appointment)
		if err != nil {
			w.logger.Error().Err(err).Str("session", s.ID).Msg("booking submission failed")
			return nil, errs.New("Failed to book appointment. Please try again.").Wrap(err)
		}
		appt := e.Appointment
		appt.ID = id
		out.Submitted = true
		out.AppointmentID = id
		out.Appointment = &appt
		w.logger.Info().Str("session", s.ID).Str("appointment", id).Msg("appointment booked")
		return BookingSubmitted{AppointmentID: id}, nil

	case Ignored:
		// unknown ids are dropped without a state change, but made visible
		w.logger.Warn().Str("session", s.ID).Str("event", e.Event).Str("id", e.ID).Msg("selection ignored")
		w.metrics.ObserveIgnored(e.Event)
		out.Ignored = append(out.Ignored, e)
		return nil, nil
	}
	return nil, errs.New("unknown effect")
}

func (w *Wizard) acquire(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.busy[id]; ok {
		return false
	}
	w.busy[id] = struct{}{}
	return true
}

func (w *Wizard) release(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.busy, id)
}
