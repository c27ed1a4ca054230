package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/napryag/clinic_booking_bot/pkg/domain/availability"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
)

const (
	MsgWrongStep     = "This action is not available at the current step"
	MsgUnknownSlot   = "Please choose one of the available time slots"
	MsgNoSlots       = "No time slots available on this date"
	MsgAcceptTerms   = "Please accept the terms and conditions"
	MsgPaymentMethod = "Please choose a payment method"
	MsgIncomplete    = "Booking is incomplete, please go back and fill in every step"
)

// SummaryDateLayout is how the confirmation step shows the date.
const SummaryDateLayout = "January 2, 2006"

// Machine is the pure booking state machine. Apply never performs I/O;
// anything that needs the outside world comes back as an Effect.
type Machine struct {
	Window availability.Window
	Now    func() time.Time
	NewID  func() string
}

func NewMachine(window availability.Window) *Machine {
	return &Machine{
		Window: window,
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

func (m *Machine) loc() *time.Location {
	if m.Window.Loc == nil {
		return time.Local
	}
	return m.Window.Loc
}

// Apply runs one transition. On error the returned session is s unchanged.
func (m *Machine) Apply(s Session, ev Event) (Session, []Effect, error) {
	switch e := ev.(type) {
	case Start:
		return s, []Effect{LoadDepartments{}}, nil

	case DepartmentsLoaded:
		active := make([]model.Department, 0, len(e.Departments))
		for _, d := range e.Departments {
			if d.IsActive() {
				active = append(active, d)
			}
		}
		s.Departments = active
		return s, nil, nil

	case SelectDepartment:
		if s.Step != StepDepartment {
			return s, nil, wrongStep(s, ev)
		}
		dept, ok := s.findDepartment(e.ID)
		if !ok {
			return s, []Effect{Ignored{Event: ev.Name(), ID: e.ID}}, nil
		}
		if s.Department == nil || s.Department.ID != dept.ID {
			s = s.clearFromDoctor()
		}
		s.Department = &dept
		s.Step = StepDoctor
		return s, []Effect{LoadDoctors{DepartmentID: dept.ID}}, nil

	case DoctorsLoaded:
		if s.Department == nil || s.Department.ID != e.DepartmentID {
			return s, nil, nil
		}
		docs := make([]model.Doctor, 0, len(e.Doctors))
		for _, d := range e.Doctors {
			if d.DepartmentID == e.DepartmentID && d.IsActive() {
				docs = append(docs, d)
			}
		}
		s.Doctors = docs
		return s, nil, nil

	case SelectDoctor:
		if s.Step != StepDoctor {
			return s, nil, wrongStep(s, ev)
		}
		doc, ok := s.findDoctor(e.ID)
		if !ok {
			return s, []Effect{Ignored{Event: ev.Name(), ID: e.ID}}, nil
		}
		if s.Doctor == nil || s.Doctor.ID != doc.ID {
			s = s.clearFromDate()
		}
		s.Doctor = &doc
		s.Step = StepDateTime
		return s, nil, nil

	case SearchDoctors:
		if s.Step != StepDoctor {
			return s, nil, wrongStep(s, ev)
		}
		s.DoctorQuery = strings.TrimSpace(e.Query)
		return s, nil, nil

	case SelectDate:
		return m.selectDate(s, e)

	case SelectTimeSlot:
		if s.Step != StepDateTime || s.Date == "" {
			return s, nil, wrongStep(s, ev)
		}
		if !s.hasSlot(e.Slot) {
			return s, nil, errs.Validation(MsgUnknownSlot).Arg("slot", e.Slot)
		}
		s.TimeSlot = e.Slot
		s.Step = StepPatientInfo
		return s, nil, nil

	case SubmitPatient:
		if s.Step != StepPatientInfo {
			return s, nil, wrongStep(s, ev)
		}
		patient, err := ValidatePatient(e.Form)
		if err != nil {
			return s, nil, err
		}
		next := s
		next.Patient = &patient
		summary, err := m.summarize(next)
		if err != nil {
			return s, nil, err
		}
		next.Summary = &summary
		next.Step = StepConfirmation
		return next, nil, nil

	case PreviousStep:
		if s.Step > StepDepartment {
			s.Step--
		}
		return s, nil, nil

	case ConfirmAndBook:
		if s.Step != StepConfirmation {
			return s, nil, wrongStep(s, ev)
		}
		if !e.TermsAccepted {
			return s, nil, errs.Validation(MsgAcceptTerms)
		}
		if e.PaymentMethod != model.PaymentMethodOnline && e.PaymentMethod != model.PaymentMethodOther {
			return s, nil, errs.Validation(MsgPaymentMethod).Arg("method", e.PaymentMethod)
		}
		appt, err := m.buildAppointment(s, e.PaymentMethod)
		if err != nil {
			return s, nil, err
		}
		return s, []Effect{SubmitAppointment{Appointment: appt}}, nil

	case BookingSubmitted:
		return s.Reset(), []Effect{LoadDepartments{}}, nil
	}

	return s, nil, errs.New("unknown event").Arg("event", fmt.Sprintf("%T", ev))
}

func (m *Machine) selectDate(s Session, e SelectDate) (Session, []Effect, error) {
	if s.Step != StepDateTime || s.Doctor == nil {
		return s, nil, wrongStep(s, e)
	}
	if err := m.Window.Check(e.Date, m.Now()); err != nil {
		return s, nil, err
	}

	date := availability.DateOnly(e.Date, m.loc())
	slots, err := availability.ComputeSlots(*s.Doctor, date)
	if err != nil && !errs.Is(err, errs.KindUnavailable) {
		return s, nil, err
	}
	s.Date = date.Format(availability.DateLayout)
	s.TimeSlot = ""
	s.Slots = nil
	s.Notice = ""
	if err != nil {
		// the day stays chosen but nothing is selectable
		s.Notice = errs.Message(err)
		return s, nil, nil
	}
	s.Slots = slots
	if len(slots) == 0 {
		s.Notice = MsgNoSlots
	}
	return s, nil, nil
}

func (m *Machine) summarize(s Session) (Summary, error) {
	if s.Department == nil || s.Doctor == nil || s.Date == "" || s.TimeSlot == "" || s.Patient == nil {
		return Summary{}, errs.Validation(MsgIncomplete)
	}
	date, err := availability.ParseDate(s.Date, m.loc())
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Department:  s.Department.Name,
		Doctor:      s.Doctor.Name,
		Date:        date.Format(SummaryDateLayout),
		TimeSlot:    s.TimeSlot,
		PatientName: s.Patient.Name,
		Contact:     s.Patient.Email + " | " + s.Patient.Phone,
		Fee:         s.Doctor.ConsultationFee,
	}, nil
}

func (m *Machine) buildAppointment(s Session, method string) (model.Appointment, error) {
	if s.Department == nil || s.Doctor == nil || s.Date == "" || s.TimeSlot == "" || s.Patient == nil {
		return model.Appointment{}, errs.Validation(MsgIncomplete)
	}
	date, err := availability.ParseDate(s.Date, m.loc())
	if err != nil {
		return model.Appointment{}, err
	}
	at, err := availability.Combine(date, s.TimeSlot, m.loc())
	if err != nil {
		return model.Appointment{}, err
	}

	payment := model.PaymentPending
	if method == model.PaymentMethodOnline {
		payment = model.PaymentPaid
	}

	return model.Appointment{
		ID:              m.NewID(),
		PatientID:       "guest-" + m.NewID(),
		PatientName:     s.Patient.Name,
		PatientEmail:    s.Patient.Email,
		PatientPhone:    s.Patient.Phone,
		PatientAge:      s.Patient.Age,
		DoctorID:        s.Doctor.ID,
		DoctorName:      s.Doctor.Name,
		DepartmentID:    s.Department.ID,
		DepartmentName:  s.Department.Name,
		AppointmentDate: at.UTC().Format(time.RFC3339),
		TimeSlot:        s.TimeSlot,
		ConsultationFee: s.Doctor.ConsultationFee,
		PaymentStatus:   payment,
		PaymentMethod:   method,
		Status:          model.AppointmentScheduled,
		Reason:          s.Patient.Reason,
	}, nil
}

func wrongStep(s Session, ev Event) error {
	return errs.Validation(MsgWrongStep).Arg("step", s.Step.String()).Arg("event", ev.Name())
}
