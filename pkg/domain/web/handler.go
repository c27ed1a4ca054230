// Package web serves the booking wizard and appointment lookup as a JSON API
// for the clinic website.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/napryag/clinic_booking_bot/pkg/domain/appointments"
	"github.com/napryag/clinic_booking_bot/pkg/domain/availability"
	"github.com/napryag/clinic_booking_bot/pkg/domain/booking"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/repository/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const sessionKeyPrefix = "web:"

type Handler struct {
	wizard       *booking.Wizard
	sessions     sessions.Store
	appointments *appointments.Service
	loc          *time.Location
	gatherer     prometheus.Gatherer
	logger       zerolog.Logger
}

func NewHandler(
	wizard *booking.Wizard,
	store sessions.Store,
	appts *appointments.Service,
	loc *time.Location,
	gatherer prometheus.Gatherer,
	logger zerolog.Logger,
) *Handler {
	if loc == nil {
		loc = time.Local
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		wizard:       wizard,
		sessions:     store,
		appointments: appts,
		loc:          loc,
		gatherer:     gatherer,
		logger:       logger.With().Str("component", "web").Logger(),
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/booking/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/{id}", h.GetSession)
		r.Post("/{id}/department", h.SelectDepartment)
		r.Post("/{id}/doctor", h.SelectDoctor)
		r.Post("/{id}/doctor/search", h.SearchDoctors)
		r.Post("/{id}/date", h.SelectDate)
		r.Post("/{id}/slot", h.SelectSlot)
		r.Post("/{id}/patient", h.SubmitPatient)
		r.Post("/{id}/back", h.Back)
		r.Post("/{id}/confirm", h.Confirm)
	})

	r.Route("/api/appointments", func(r chi.Router) {
		r.Get("/", h.Lookup)
		r.Post("/{id}/cancel", h.Cancel)
		r.Post("/{id}/reschedule", h.Reschedule)
	})
	return r
}

// SessionResponse is returned by every wizard endpoint.
type SessionResponse struct {
	Session  booking.Session `json:"session"`
	StepName string          `json:"step_name"`
	// VisibleDoctors is the doctor list narrowed by the current search.
	VisibleDoctors []model.Doctor     `json:"visible_doctors,omitempty"`
	Submitted      bool               `json:"submitted,omitempty"`
	AppointmentID  string             `json:"appointment_id,omitempty"`
	Appointment    *model.Appointment `json:"appointment,omitempty"`
	Ignored        []string           `json:"ignored,omitempty"`
}

type (
	idRequest struct {
		ID string `json:"id"`
	}
	dateRequest struct {
		Date string `json:"date"`
	}
	slotRequest struct {
		Slot string `json:"slot"`
	}
	confirmRequest struct {
		TermsAccepted bool   `json:"terms_accepted"`
		PaymentMethod string `json:"payment_method"`
	}
	cancelRequest struct {
		Reason string `json:"reason"`
	}
)

// CreateSession starts a wizard with departments loaded.
// POST /api/booking/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	out, err := h.wizard.Begin(r.Context(), "")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err = h.save(r.Context(), out.Session); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(out))
}

// GET /api/booking/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.sessions.Get(r.Context(), sessionKeyPrefix+chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(booking.Outcome{Session: st.Booking}))
}

func (h *Handler) SelectDepartment(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, booking.SelectDepartment{ID: req.ID})
}

func (h *Handler) SelectDoctor(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, booking.SelectDoctor{ID: req.ID})
}

// SearchDoctors narrows the step 2 doctor list by name or specialization.
// POST /api/booking/sessions/{id}/doctor/search?q=
func (h *Handler) SearchDoctors(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, booking.SearchDoctors{Query: r.URL.Query().Get("q")})
}

func (h *Handler) SelectDate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := availability.ParseDate(req.Date, h.loc)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.dispatch(w, r, booking.SelectDate{Date: date})
}

func (h *Handler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, booking.SelectTimeSlot{Slot: req.Slot})
}

func (h *Handler) SubmitPatient(w http.ResponseWriter, r *http.Request) {
	var form booking.PatientForm
	if !h.decode(w, r, &form) {
		return
	}
	h.dispatch(w, r, booking.SubmitPatient{Form: form})
}

func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, booking.PreviousStep{})
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, booking.ConfirmAndBook{TermsAccepted: req.TermsAccepted, PaymentMethod: req.PaymentMethod})
}

// Lookup lists the appointments booked with an email.
// GET /api/appointments?email=
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	list, err := h.appointments.LookupByEmail(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]AppointmentView, 0, len(list))
	for _, a := range list {
		out = append(out, h.view(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// POST /api/appointments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.appointments.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(a))
}

// POST /api/appointments/{id}/reschedule
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, h.appointments.Reschedule(r.Context(), chi.URLParam(r, "id")))
}

// AppointmentView adds display fields to a stored appointment.
type AppointmentView struct {
	model.Appointment
	When        string `json:"when"`
	Cancellable bool   `json:"cancellable"`
}

func (h *Handler) view(a model.Appointment) AppointmentView {
	return AppointmentView{Appointment: a, When: h.appointments.When(a), Cancellable: a.Cancellable()}
}

// dispatch loads the session, applies ev and stores the result while
// holding the session's busy flag, so a repeated request sees the saved
// result of the first one. A rejected event leaves the stored session
// untouched.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, ev booking.Event) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var out booking.Outcome
	err := h.wizard.Guard(id, ev.Name(), func() error {
		st, err := h.sessions.Get(ctx, sessionKeyPrefix+id)
		if err != nil {
			return err
		}
		if out, err = h.wizard.Run(ctx, st.Booking, ev); err != nil {
			return err
		}
		return h.save(ctx, out.Session)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(out))
}

func (h *Handler) save(ctx context.Context, s booking.Session) error {
	return h.sessions.Save(ctx, sessionKeyPrefix+s.ID, sessions.State{Booking: s, Screen: sessions.ScreenBooking})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

func toResponse(out booking.Outcome) SessionResponse {
	resp := SessionResponse{
		Session:        out.Session,
		StepName:       out.Session.Step.String(),
		VisibleDoctors: out.Session.VisibleDoctors(),
		Submitted:      out.Submitted,
		AppointmentID:  out.AppointmentID,
		Appointment:    out.Appointment,
	}
	for _, ig := range out.Ignored {
		resp.Ignored = append(resp.Ignored, ig.Event+":"+ig.ID)
	}
	return resp
}
