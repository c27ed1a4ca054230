package receiver

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/clinic_booking_bot/pkg/domain/availability"
	"github.com/napryag/clinic_booking_bot/pkg/domain/booking"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
)

const (
	slotsPerRow = 4
	datesPerRow = 3
)

// ---------- UI builders ----------

func backRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", CbBack))
}

func BackMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(backRow())
}

func MainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🩺 Book an appointment", CbBook)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📅 My appointments", CbMy)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❓ Help", CbHelp)),
	)
}

func DepartmentMenu(depts []model.Department) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(depts)+1)
	for _, d := range depts {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(d.Name, PDep+d.ID)))
	}
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// DoctorMenu lists docs; searching adds a button that shows everyone again.
func DoctorMenu(docs []model.Doctor, searching bool) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(docs)+2)
	for _, d := range docs {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(d.Name, PDoc+d.ID)))
	}
	if searching {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔎 Show all doctors", CbClearSearch)))
	}
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// DateTimeMenu offers the computed slots for the chosen date followed by the
// next working days of the doctor inside the booking window.
func DateTimeMenu(s booking.Session, window availability.Window, now time.Time, days int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	rows = append(rows, chunk(slotButtons(s.Slots), slotsPerRow)...)

	var dates []tgbotapi.InlineKeyboardButton
	for _, d := range UpcomingDates(s.Doctor, window, now, days) {
		iso := d.Format(availability.DateLayout)
		label := HumanDate(iso)
		if iso == s.Date {
			label = "• " + label
		}
		dates = append(dates, tgbotapi.NewInlineKeyboardButtonData(label, PD+iso))
	}
	rows = append(rows, chunk(dates, datesPerRow)...)
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// UpcomingDates lists up to n bookable dates from today, skipping weekdays
// the doctor is known not to work.
func UpcomingDates(doc *model.Doctor, window availability.Window, now time.Time, n int) []time.Time {
	first, last := window.Bounds(now)
	var weekly availability.Weekly
	known := false
	if doc != nil {
		weekly, known = availability.FromDoctor(*doc)
		known = known && len(weekly.Days) > 0
	}

	out := make([]time.Time, 0, n)
	for d := first; !d.After(last) && len(out) < n; d = d.AddDate(0, 0, 1) {
		if known && !weekly.Has(d.Weekday()) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func ConfirmMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Pay online", CbPayOnline),
			tgbotapi.NewInlineKeyboardButtonData("🏥 Pay at the clinic", CbPayOther),
		),
		backRow(),
	)
}

// LookupMenu adds a cancel button for every appointment that can still be
// cancelled.
func LookupMenu(list []model.Appointment, when func(model.Appointment) string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, a := range list {
		if !a.Cancellable() {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel "+when(a), PCancel+a.ID),
		))
	}
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func slotButtons(slots []string) []tgbotapi.InlineKeyboardButton {
	out := make([]tgbotapi.InlineKeyboardButton, 0, len(slots))
	for _, t := range slots {
		out = append(out, tgbotapi.NewInlineKeyboardButtonData(t, PT+t))
	}
	return out
}

func chunk(buttons []tgbotapi.InlineKeyboardButton, size int) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton
	for len(buttons) > 0 {
		n := size
		if len(buttons) < n {
			n = len(buttons)
		}
		rows = append(rows, buttons[:n])
		buttons = buttons[n:]
	}
	return rows
}
