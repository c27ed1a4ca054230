package booking

import (
	"time"

	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
)

// Event is an input to the state machine: a user action or the result of
// an effect.
type Event interface {
	Name() string
}

type (
	Start            struct{}
	SelectDepartment struct{ ID string }
	SelectDoctor     struct{ ID string }
	// SearchDoctors narrows the doctors shown at step 2. An empty query
	// shows them all again.
	SearchDoctors  struct{ Query string }
	SelectDate     struct{ Date time.Time }
	SelectTimeSlot struct{ Slot string }
	SubmitPatient  struct{ Form PatientForm }
	PreviousStep   struct{}
	ConfirmAndBook struct {
		TermsAccepted bool
		PaymentMethod string
	}

	DepartmentsLoaded struct{ Departments []model.Department }
	DoctorsLoaded     struct {
		DepartmentID string
		Doctors      []model.Doctor
	}
	BookingSubmitted struct{ AppointmentID string }
)

func (Start) Name() string             { return "start" }
func (SelectDepartment) Name() string  { return "select_department" }
func (SelectDoctor) Name() string      { return "select_doctor" }
func (SearchDoctors) Name() string     { return "search_doctors" }
func (SelectDate) Name() string        { return "select_date" }
func (SelectTimeSlot) Name() string    { return "select_time_slot" }
func (SubmitPatient) Name() string     { return "submit_patient" }
func (PreviousStep) Name() string      { return "previous_step" }
func (ConfirmAndBook) Name() string    { return "confirm_and_book" }
func (DepartmentsLoaded) Name() string { return "departments_loaded" }
func (DoctorsLoaded) Name() string     { return "doctors_loaded" }
func (BookingSubmitted) Name() string  { return "booking_submitted" }

// Effect is work the machine asks its caller to perform.
type Effect interface {
	effect()
}

type (
	LoadDepartments   struct{}
	LoadDoctors       struct{ DepartmentID string }
	SubmitAppointment struct{ Appointment model.Appointment }
	// Ignored reports a selection that matched nothing and changed nothing.
	Ignored struct {
		Event string
		ID    string
	}
)

func (LoadDepartments) effect()   {}
func (LoadDoctors) effect()       {}
func (SubmitAppointment) effect() {}
func (Ignored) effect()           {}
