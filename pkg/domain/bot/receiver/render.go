package receiver

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/clinic_booking_bot/pkg/domain/availability"
	"github.com/napryag/clinic_booking_bot/pkg/domain/booking"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/repository/sessions"
)

// ---------- Rendering by screen ----------

func RenderText(st sessions.State, opts Options) string {
	switch st.Screen {
	case sessions.ScreenBooking:
		return renderStep(st.Booking, opts)
	case sessions.ScreenLookupEmail:
		return "Send the email address you used for booking."
	case sessions.ScreenCancelReason:
		return "Please tell us why you are cancelling this appointment."
	case sessions.ScreenHelp:
		return fmt.Sprintf("Tap «Book an appointment» to choose a department, doctor and time.\n"+
			"«My appointments» finds your bookings by email and lets you cancel them.\n"+
			"To reschedule please call us at %s.", opts.SupportPhone)
	default:
		return "Choose an action:"
	}
}

// RenderKeyboard builds the keyboard for every screen except the lookup
// list, which needs the appointments.
func RenderKeyboard(st sessions.State, opts Options, now time.Time) tgbotapi.InlineKeyboardMarkup {
	switch st.Screen {
	case sessions.ScreenBooking:
		s := st.Booking
		switch s.Step {
		case booking.StepDepartment:
			return DepartmentMenu(s.Departments)
		case booking.StepDoctor:
			return DoctorMenu(s.VisibleDoctors(), s.DoctorQuery != "")
		case booking.StepDateTime:
			return DateTimeMenu(s, opts.Window, now, opts.DateButtons)
		case booking.StepConfirmation:
			return ConfirmMenu()
		default:
			return BackMenu()
		}
	case sessions.ScreenLookupEmail, sessions.ScreenCancelReason, sessions.ScreenHelp, sessions.ScreenLookup:
		return BackMenu()
	default:
		return MainMenu()
	}
}

func renderStep(s booking.Session, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d of 5\n", s.Step)

	switch s.Step {
	case booking.StepDepartment:
		if len(s.Departments) == 0 {
			b.WriteString("No departments available right now.")
			break
		}
		b.WriteString("Choose a department:")

	case booking.StepDoctor:
		if s.Department != nil {
			fmt.Fprintf(&b, "Department: %s\n", s.Department.Name)
		}
		if len(s.Doctors) == 0 {
			b.WriteString("No doctors available in this department.")
			break
		}
		docs := s.VisibleDoctors()
		if s.DoctorQuery != "" {
			fmt.Fprintf(&b, "Search: %s\n", s.DoctorQuery)
		}
		if len(docs) == 0 {
			b.WriteString("No doctors found.")
			break
		}
		b.WriteString("Choose a doctor or send a name to search:\n")
		for _, d := range docs {
			b.WriteString("\n" + doctorLine(d))
		}

	case booking.StepDateTime:
		if s.Doctor != nil {
			fmt.Fprintf(&b, "Doctor: %s\n", s.Doctor.Name)
			if sched := schedule(*s.Doctor); sched != "" {
				fmt.Fprintf(&b, "Works: %s\n", sched)
			}
		}
		if s.Date == "" {
			b.WriteString("Choose a date below or send one as YYYY-MM-DD.")
			break
		}
		fmt.Fprintf(&b, "Date: %s\n", longDate(s.Date, opts.Window.Loc))
		if s.Notice != "" {
			b.WriteString(s.Notice + ". Please choose another date.")
			break
		}
		b.WriteString("Choose a time:")

	case booking.StepPatientInfo:
		if s.Doctor != nil {
			fmt.Fprintf(&b, "%s, %s at %s\n\n", s.Doctor.Name, longDate(s.Date, opts.Window.Loc), s.TimeSlot)
		}
		b.WriteString("Send your details in one message, one per line:\n" +
			"Full name\nEmail\nPhone\nAge\nReason for visit (optional)")

	case booking.StepConfirmation:
		b.WriteString("Please check your appointment:\n")
		if sum := s.Summary; sum != nil {
			fmt.Fprintf(&b, "Department: %s\nDoctor: %s\nDate: %s\nTime: %s\nPatient: %s\nContact: %s\nConsultation fee: $%.2f\n",
				sum.Department, sum.Doctor, sum.Date, sum.TimeSlot, sum.PatientName, sum.Contact, sum.Fee)
		}
		b.WriteString("\nChoosing a payment option confirms the booking and accepts the terms and conditions.")
	}
	return b.String()
}

// LookupText lists appointments the way the lookup screen shows them.
func LookupText(email string, list []model.Appointment, when func(model.Appointment) string) string {
	if len(list) == 0 {
		return fmt.Sprintf("No appointments found for %s.", email)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Appointments for %s:\n", email)
	for _, a := range list {
		fmt.Fprintf(&b, "\n• %s, %s (%s), %s", when(a), a.DoctorName, a.DepartmentName, a.Status)
		if a.CancellationReason != "" {
			fmt.Fprintf(&b, ": %s", a.CancellationReason)
		}
	}
	return b.String()
}

// BookedText confirms a stored appointment.
func BookedText(a model.Appointment, when string) string {
	return fmt.Sprintf("✅ Your appointment is booked!\n%s (%s)\n%s\nBooking ID: %s",
		a.DoctorName, a.DepartmentName, when, a.ID)
}

func doctorLine(d model.Doctor) string {
	parts := []string{d.Name}
	if d.Specialization != "" {
		parts = append(parts, d.Specialization)
	}
	if d.ExperienceYears > 0 {
		parts = append(parts, fmt.Sprintf("%g yrs", d.ExperienceYears))
	}
	parts = append(parts, fmt.Sprintf("$%.2f", d.ConsultationFee))
	return "• " + strings.Join(parts, ", ")
}

func schedule(d model.Doctor) string {
	days := strings.Join(d.AvailableDays, ", ")
	return strings.TrimSpace(days + " " + d.AvailableHours)
}

func longDate(iso string, loc *time.Location) string {
	t, err := availability.ParseDate(iso, loc)
	if err != nil {
		return iso
	}
	return t.Format(booking.SummaryDateLayout)
}
