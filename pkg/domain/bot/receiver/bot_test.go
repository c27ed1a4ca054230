package receiver

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/clinic_booking_bot/pkg/domain/appointments"
	"github.com/napryag/clinic_booking_bot/pkg/domain/availability"
	"github.com/napryag/clinic_booking_bot/pkg/domain/booking"
	"github.com/napryag/clinic_booking_bot/pkg/domain/catalog"
	"github.com/napryag/clinic_booking_bot/pkg/repository/memstore"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/repository/sessions"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.October, 19, 8, 0, 0, 0, time.UTC) // Monday

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: 100 + f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) lastSent() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) lastRequest() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeAPI) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fixture struct {
	api      *fakeAPI
	bot      *Bot
	store    *memstore.Store
	sessions *sessions.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	_, err := store.Create(ctx, model.CollectionDepartments, model.Record{"id": "dept-cardio", "name": "Cardiology", "status": "active"})
	require.NoError(t, err)
	_, err = store.Create(ctx, model.CollectionDoctors, model.Record{
		"id": "doc-1", "department_id": "dept-cardio", "name": "Dr. Sarah Johnson",
		"specialization": "Cardiology", "experience_years": 15, "status": "active", "consultation_fee": 150,
		"available_days": []any{"Monday", "Wednesday"}, "available_hours": "09:00-17:00",
	})
	require.NoError(t, err)

	window := availability.Window{Months: 3, Loc: time.UTC}
	appts := appointments.New(store, nil, nil, appointments.Config{SupportPhone: "+1 555 010 0000", Location: time.UTC}, zerolog.Nop())
	machine := booking.NewMachine(window)
	machine.Now = func() time.Time { return testNow }
	wizard := booking.NewWizard(machine, catalog.New(store, zerolog.Nop()), appts, zerolog.Nop(), nil)

	api := &fakeAPI{}
	ss := sessions.NewMemoryStore()
	bot := New(api, wizard, ss, appts, Options{
		Window:       window,
		SupportPhone: "+1 555 010 0000",
		ReminderTTL:  time.Millisecond,
		Now:          func() time.Time { return testNow },
	}, zerolog.Nop())
	return &fixture{api: api, bot: bot, store: store, sessions: ss}
}

const userID int64 = 42

func commandUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "Jane"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: userID, FirstName: "Jane"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}}
}

func callbackData(kb tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}

// screen returns the text and keyboard of the last message sent or edited.
func (f *fixture) screen(t *testing.T) (string, []string) {
	t.Helper()
	switch c := f.api.lastSent().(type) {
	case tgbotapi.MessageConfig:
		kb, ok := c.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		require.True(t, ok)
		return c.Text, callbackData(kb)
	case tgbotapi.EditMessageTextConfig:
		require.NotNil(t, c.ReplyMarkup)
		return c.Text, callbackData(*c.ReplyMarkup)
	}
	t.Fatalf("unexpected chattable %T", f.api.lastSent())
	return "", nil
}

func (f *fixture) state(t *testing.T) sessions.State {
	t.Helper()
	st, err := f.sessions.Get(context.Background(), sessionKey(userID))
	require.NoError(t, err)
	return st
}

func TestBot_Start(t *testing.T) {
	f := newFixture(t)
	f.bot.HandleUpdate(context.Background(), commandUpdate("/start"))

	_, ok := f.api.lastRequest().(tgbotapi.DeleteMessageConfig)
	assert.True(t, ok, "the /start message is removed")

	text, buttons := f.screen(t)
	assert.Contains(t, text, "Hello, Jane!")
	assert.Equal(t, []string{CbBook, CbMy, CbHelp}, buttons)
	assert.Equal(t, 101, f.state(t).MessageID)
}

func TestBot_BookingFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, callbackUpdate(CbBook))
	text, buttons := f.screen(t)
	assert.Contains(t, text, "Step 1 of 5")
	assert.Equal(t, []string{PDep + "dept-cardio", CbBack}, buttons)

	f.bot.HandleUpdate(ctx, callbackUpdate(PDep+"dept-cardio"))
	text, buttons = f.screen(t)
	assert.Contains(t, text, "Dr. Sarah Johnson, Cardiology, 15 yrs, $150.00")
	assert.Equal(t, []string{PDoc + "doc-1", CbBack}, buttons)

	f.bot.HandleUpdate(ctx, callbackUpdate(PDoc+"doc-1"))
	text, buttons = f.screen(t)
	assert.Contains(t, text, "Works: Monday, Wednesday 09:00-17:00")
	assert.Contains(t, buttons, PD+"2026-10-19")
	assert.Contains(t, buttons, PD+"2026-10-21")
	assert.NotContains(t, buttons, PD+"2026-10-20", "days off are not offered")

	f.bot.HandleUpdate(ctx, textUpdate("2026-10-20"))
	text, _ = f.screen(t)
	assert.Contains(t, text, "doctor not available on Tuesday")

	f.bot.HandleUpdate(ctx, callbackUpdate(PD+"2026-10-19"))
	text, buttons = f.screen(t)
	assert.Contains(t, text, "Date: October 19, 2026")
	assert.Contains(t, buttons, PT+"09:00")
	assert.Contains(t, buttons, PT+"16:30")

	f.bot.HandleUpdate(ctx, callbackUpdate(PT+"10:00"))
	text, _ = f.screen(t)
	assert.Contains(t, text, "Step 4 of 5")

	f.bot.HandleUpdate(ctx, textUpdate("Jane Doe\njane@example\n555-123-4567\n34"))
	text, _ = f.screen(t)
	assert.True(t, strings.HasPrefix(text, "⚠️ "+booking.MsgInvalidEmail), text)
	assert.Equal(t, booking.StepPatientInfo, f.state(t).Booking.Step)

	f.bot.HandleUpdate(ctx, textUpdate("Jane Doe\njane@example.com\n555-123-4567\n34\nChest pain"))
	text, buttons = f.screen(t)
	assert.Contains(t, text, "Step 5 of 5")
	assert.Contains(t, text, "Contact: jane@example.com | 555-123-4567")
	assert.Equal(t, []string{CbPayOnline, CbPayOther, CbBack}, buttons)

	f.bot.HandleUpdate(ctx, callbackUpdate(CbPayOther))
	text, buttons = f.screen(t)
	assert.Contains(t, text, "Your appointment is booked!")
	assert.Contains(t, text, "Oct 19, 2026 10:00 AM")
	assert.Equal(t, []string{CbBook, CbMy, CbHelp}, buttons)
	assert.Equal(t, sessions.ScreenMain, f.state(t).Screen)

	recs, err := f.store.List(ctx, model.CollectionAppointments, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "pending", recs[0]["payment_status"])
	assert.Equal(t, "Chest pain", recs[0]["reason"])
}

func TestBot_Back(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, callbackUpdate(CbBook))
	f.bot.HandleUpdate(ctx, callbackUpdate(PDep+"dept-cardio"))
	f.bot.HandleUpdate(ctx, callbackUpdate(CbBack))
	assert.Equal(t, booking.StepDepartment, f.state(t).Booking.Step)

	f.bot.HandleUpdate(ctx, callbackUpdate(CbBack))
	assert.Equal(t, sessions.ScreenMain, f.state(t).Screen)
}

func TestBot_WrongStepAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, callbackUpdate(CbBook))
	f.bot.HandleUpdate(ctx, callbackUpdate(CbPayOnline))

	cb, ok := f.api.lastRequest().(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.True(t, cb.ShowAlert)
	assert.Equal(t, booking.MsgWrongStep, cb.Text)
}

func TestBot_StaleButton(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, callbackUpdate(PDoc+"doc-1"))
	text, _ := f.screen(t)
	assert.True(t, strings.HasPrefix(text, msgGone))

	f.bot.HandleUpdate(ctx, callbackUpdate(CbBook))
	f.bot.HandleUpdate(ctx, callbackUpdate(PDep+"dept-gone"))
	text, _ = f.screen(t)
	assert.True(t, strings.HasPrefix(text, msgGone))
	assert.Equal(t, booking.StepDepartment, f.state(t).Booking.Step)
}

func TestBot_LookupAndCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.store.Create(ctx, model.CollectionAppointments, model.Record{
		"patient_email": "jane@example.com", "doctor_name": "Dr. Sarah Johnson", "department_name": "Cardiology",
		"appointment_date": "2026-10-21T09:30:00Z", "time_slot": "09:30", "status": "scheduled",
	})
	require.NoError(t, err)
	id := created.ID()

	f.bot.HandleUpdate(ctx, callbackUpdate(CbMy))
	text, _ := f.screen(t)
	assert.Contains(t, text, "Send the email address")

	f.bot.HandleUpdate(ctx, textUpdate("not-an-email"))
	text, _ = f.screen(t)
	assert.Contains(t, text, booking.MsgInvalidEmail)

	f.bot.HandleUpdate(ctx, textUpdate("jane@example.com"))
	text, buttons := f.screen(t)
	assert.Contains(t, text, "• Oct 21, 2026 09:30 AM, Dr. Sarah Johnson (Cardiology), scheduled")
	assert.Equal(t, []string{PCancel + id, CbBack}, buttons)

	f.bot.HandleUpdate(ctx, callbackUpdate(PCancel+id))
	text, _ = f.screen(t)
	assert.Contains(t, text, "why you are cancelling")

	f.bot.HandleUpdate(ctx, textUpdate("   "))
	text, _ = f.screen(t)
	assert.Contains(t, text, appointments.MsgReasonRequired)

	f.bot.HandleUpdate(ctx, textUpdate("feeling better"))
	text, buttons = f.screen(t)
	assert.Contains(t, text, "Your appointment on Oct 21, 2026 09:30 AM has been cancelled.")
	assert.Contains(t, text, "cancelled: feeling better")
	assert.Equal(t, []string{CbBack}, buttons)

	rec, err := f.store.Get(ctx, model.CollectionAppointments, id)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", rec["status"])
}

func TestBot_FreeTextReminder(t *testing.T) {
	f := newFixture(t)
	f.bot.HandleUpdate(context.Background(), textUpdate("hello?"))

	msg, ok := f.api.lastSent().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, msgUseButtons, msg.Text)
	assert.Eventually(t, func() bool { return f.api.requestCount() == 2 }, time.Second, 5*time.Millisecond,
		"the text and the reminder are both deleted")
}

func TestBot_Help(t *testing.T) {
	f := newFixture(t)
	f.bot.HandleUpdate(context.Background(), callbackUpdate(CbHelp))
	text, _ := f.screen(t)
	assert.Contains(t, text, "+1 555 010 0000")
}

func TestParsePatient(t *testing.T) {
	form := ParsePatient("  Jane Doe \n\njane@example.com\n555-123-4567\n34\nChest pain\nsince Monday")
	assert.Equal(t, booking.PatientForm{
		Type:   booking.PatientGuest,
		Name:   "Jane Doe",
		Email:  "jane@example.com",
		Phone:  "555-123-4567",
		Age:    "34",
		Reason: "Chest pain since Monday",
	}, form)

	short := ParsePatient("Jane Doe")
	assert.Empty(t, short.Email)
	_, err := booking.ValidatePatient(short)
	assert.Error(t, err)
}

func TestUpcomingDates(t *testing.T) {
	doc := &model.Doctor{AvailableDays: []string{"Monday", "Wednesday"}}
	window := availability.Window{Months: 3, Loc: time.UTC}

	got := UpcomingDates(doc, window, testNow, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "2026-10-19", got[0].Format(availability.DateLayout))
	assert.Equal(t, "2026-10-21", got[1].Format(availability.DateLayout))
	assert.Equal(t, "2026-10-26", got[2].Format(availability.DateLayout))

	all := UpcomingDates(nil, window, testNow, 3)
	assert.Equal(t, "2026-10-20", all[1].Format(availability.DateLayout))

	tight := UpcomingDates(nil, availability.Window{Months: 0, Loc: time.UTC}, testNow, 5)
	assert.Len(t, tight, 1)
}

func TestBot_DoctorSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bot.HandleUpdate(ctx, callbackUpdate(CbBook))
	f.bot.HandleUpdate(ctx, callbackUpdate(PDep+"dept-cardio"))

	f.bot.HandleUpdate(ctx, textUpdate("neuro"))
	text, buttons := f.screen(t)
	assert.Contains(t, text, "Search: neuro")
	assert.Contains(t, text, "No doctors found.")
	assert.Equal(t, []string{CbClearSearch, CbBack}, buttons)

	f.bot.HandleUpdate(ctx, textUpdate("SARAH"))
	_, buttons = f.screen(t)
	assert.Equal(t, []string{PDoc + "doc-1", CbClearSearch, CbBack}, buttons)

	f.bot.HandleUpdate(ctx, callbackUpdate(CbClearSearch))
	text, buttons = f.screen(t)
	assert.NotContains(t, text, "Search:")
	assert.Equal(t, []string{PDoc + "doc-1", CbBack}, buttons)
	assert.Empty(t, f.state(t).Booking.DoctorQuery)
}

func TestBot_BusySession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.bot.wizard.Guard(sessionKey(userID), "test", func() error {
		f.bot.HandleUpdate(ctx, callbackUpdate(CbBook))
		cb, ok := f.api.lastRequest().(tgbotapi.CallbackConfig)
		require.True(t, ok)
		assert.True(t, cb.ShowAlert)
		assert.Equal(t, booking.MsgBusy, cb.Text)

		f.bot.HandleUpdate(ctx, textUpdate("hello?"))
		msg, ok := f.api.lastSent().(tgbotapi.MessageConfig)
		require.True(t, ok)
		assert.Equal(t, booking.MsgBusy, msg.Text)
		return nil
	})
	require.NoError(t, err)

	_, err = f.sessions.Get(ctx, sessionKey(userID))
	assert.Error(t, err, "nothing was saved while busy")
}
