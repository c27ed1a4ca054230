// Package booking holds the appointment wizard: a pure state machine over
// Session values and a Wizard that runs its side effects.
package booking

import (
	"strings"

	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
)

// ---------- FSM ----------

type Step int

const (
	StepDepartment Step = iota + 1
	StepDoctor
	StepDateTime
	StepPatientInfo
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepDepartment:
		return "department"
	case StepDoctor:
		return "doctor"
	case StepDateTime:
		return "datetime"
	case StepPatientInfo:
		return "patient"
	case StepConfirmation:
		return "confirmation"
	default:
		return "unknown"
	}
}

const (
	PatientGuest      = "guest"
	PatientRegistered = "registered"
)

// Patient is a validated guest patient.
type Patient struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Age    int    `json:"age"`
	Reason string `json:"reason,omitempty"`
}

// Summary is what the confirmation step shows.
type Summary struct {
	Department  string  `json:"department"`
	Doctor      string  `json:"doctor"`
	Date        string  `json:"date"`
	TimeSlot    string  `json:"time_slot"`
	PatientName string  `json:"patient_name"`
	Contact     string  `json:"contact"`
	Fee         float64 `json:"fee"`
}

// Session is one visitor's in-progress booking. It is a plain value: the
// machine returns a new Session on every transition.
type Session struct {
	ID         string            `json:"id"`
	Step       Step              `json:"step"`
	Department *model.Department `json:"department,omitempty"`
	Doctor     *model.Doctor     `json:"doctor,omitempty"`
	Date       string            `json:"date,omitempty"` // YYYY-MM-DD
	TimeSlot   string            `json:"time_slot,omitempty"`
	Patient    *Patient          `json:"patient,omitempty"`
	Summary    *Summary          `json:"summary,omitempty"`

	// Options loaded for the current step.
	Departments []model.Department `json:"departments,omitempty"`
	Doctors     []model.Doctor     `json:"doctors,omitempty"`
	DoctorQuery string             `json:"doctor_query,omitempty"`
	Slots       []string           `json:"slots,omitempty"`
	// Notice explains an empty slot list, e.g. "doctor not available on Sunday".
	Notice string `json:"notice,omitempty"`
}

func NewSession(id string) Session {
	return Session{ID: id, Step: StepDepartment}
}

// Reset returns the initial empty session with the same id.
func (s Session) Reset() Session {
	return NewSession(s.ID)
}

func (s Session) clearFromDoctor() Session {
	s.Doctor = nil
	s.Doctors = nil
	s.DoctorQuery = ""
	return s.clearFromDate()
}

func (s Session) clearFromDate() Session {
	s.Date = ""
	s.TimeSlot = ""
	s.Slots = nil
	s.Notice = ""
	s.Patient = nil
	s.Summary = nil
	return s
}

// VisibleDoctors is the loaded doctor list narrowed by DoctorQuery.
func (s Session) VisibleDoctors() []model.Doctor {
	return MatchDoctors(s.Doctors, s.DoctorQuery)
}

// MatchDoctors keeps the doctors whose name or specialization contains
// query, ignoring case. An empty query matches everyone.
func MatchDoctors(docs []model.Doctor, query string) []model.Doctor {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return docs
	}
	out := make([]model.Doctor, 0, len(docs))
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d.Name), q) || strings.Contains(strings.ToLower(d.Specialization), q) {
			out = append(out, d)
		}
	}
	return out
}

func (s Session) findDepartment(id string) (model.Department, bool) {
	for _, d := range s.Departments {
		if d.ID == id {
			return d, true
		}
	}
	return model.Department{}, false
}

func (s Session) findDoctor(id string) (model.Doctor, bool) {
	for _, d := range s.Doctors {
		if d.ID == id {
			return d, true
		}
	}
	return model.Doctor{}, false
}

func (s Session) hasSlot(slot string) bool {
	for _, v := range s.Slots {
		if v == slot {
			return true
		}
	}
	return false
}
