package model

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
)

// Collections of the clinic table store.
const (
	CollectionDepartments  = "departments"
	CollectionDoctors      = "doctors"
	CollectionAppointments = "appointments"
	CollectionTestimonials = "testimonials"
	CollectionBlogs        = "blogs"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Appointment lifecycle.
const (
	AppointmentScheduled = "scheduled"
	AppointmentCancelled = "cancelled"
	AppointmentCompleted = "completed"
)

const (
	PaymentPaid    = "paid"
	PaymentPending = "pending"

	PaymentMethodOnline = "online"
	PaymentMethodOther  = "other"
)

type Department struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
	Status      string `json:"status"`
}

func (d Department) IsActive() bool { return d.Status == StatusActive }

type Doctor struct {
	ID              string   `json:"id"`
	DepartmentID    string   `json:"department_id"`
	Name            string   `json:"name"`
	Specialization  string   `json:"specialization"`
	Qualification   string   `json:"qualification"`
	ExperienceYears float64  `json:"experience_years"`
	ConsultationFee float64  `json:"consultation_fee"`
	PhotoURL        string   `json:"photo_url,omitempty"`
	Status          string   `json:"status"`
	AvailableDays   []string `json:"available_days,omitempty"`  // Monday, Tuesday, ...
	AvailableHours  string   `json:"available_hours,omitempty"` // 09:00-17:00
}

func (d Doctor) IsActive() bool { return d.Status == StatusActive }

// Appointment is the persisted booking. Doctor, department and fee fields
// are copies taken at booking time.
type Appointment struct {
	ID                 string  `json:"id"`
	PatientID          string  `json:"patient_id"`
	PatientName        string  `json:"patient_name"`
	PatientEmail       string  `json:"patient_email"`
	PatientPhone       string  `json:"patient_phone"`
	PatientAge         int     `json:"patient_age,omitempty"`
	DoctorID           string  `json:"doctor_id"`
	DoctorName         string  `json:"doctor_name"`
	DepartmentID       string  `json:"department_id"`
	DepartmentName     string  `json:"department_name"`
	AppointmentDate    string  `json:"appointment_date"` // RFC 3339, UTC
	TimeSlot           string  `json:"time_slot"`        // HH:MM
	ConsultationFee    float64 `json:"consultation_fee"`
	PaymentStatus      string  `json:"payment_status"`
	PaymentMethod      string  `json:"payment_method"`
	Status             string  `json:"status"`
	Reason             string  `json:"reason"`
	Notes              string  `json:"notes"`
	CancellationReason string  `json:"cancellation_reason"`
}

// Cancellable reports whether the patient may still cancel or reschedule.
func (a Appointment) Cancellable() bool { return a.Status == AppointmentScheduled }

// Record is a raw row of the table store.
type Record map[string]any

// ID returns the "id" field of the record when it is a string.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// RecordStore is the generic CRUD surface of the clinic table store.
// Implementations return errs kinds: NotFound for missing ids, Transport for
// everything the backend failed on.
type RecordStore interface {
	List(ctx context.Context, collection string, params url.Values) ([]Record, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Create(ctx context.Context, collection string, rec Record) (Record, error)
	Replace(ctx context.Context, collection, id string, rec Record) (Record, error)
	Patch(ctx context.Context, collection, id string, partial Record) (Record, error)
	Delete(ctx context.Context, collection, id string) error
}

// Encode converts a typed value into a Record.
func Encode(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errs.New("failed to encode record").Wrap(err)
	}
	var rec Record
	if err = json.Unmarshal(data, &rec); err != nil {
		return nil, errs.New("failed to encode record").Wrap(err)
	}
	return rec, nil
}

// Decode converts a Record into a typed value.
func Decode[T any](rec Record) (T, error) {
	var out T
	data, err := json.Marshal(rec)
	if err != nil {
		return out, errs.New("failed to decode record").Wrap(err)
	}
	if err = json.Unmarshal(data, &out); err != nil {
		return out, errs.New("failed to decode record").Arg("id", rec.ID()).Wrap(err)
	}
	return out, nil
}
