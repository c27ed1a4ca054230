// Package receiver is the Telegram front end of the booking wizard: it maps
// button presses and text replies to wizard events and renders the result
// into the same chat message.
package receiver

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/clinic_booking_bot/pkg/domain/appointments"
	"github.com/napryag/clinic_booking_bot/pkg/domain/availability"
	"github.com/napryag/clinic_booking_bot/pkg/domain/booking"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/repository/sessions"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
)

const (
	msgUseButtons    = "Please use the buttons 👆"
	msgGone          = "That option is no longer available"
	msgSomethingWent = "Something went wrong, please try again later."
)

// BotAPI is the part of *tgbotapi.BotAPI the receiver uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Options struct {
	Window       availability.Window
	SupportPhone string
	// DateButtons is how many upcoming dates the date step offers.
	DateButtons int
	// ReminderTTL is how long the "use the buttons" reminder stays.
	ReminderTTL time.Duration
	Now         func() time.Time
}

type Bot struct {
	api          BotAPI
	wizard       *booking.Wizard
	sessions     sessions.Store
	appointments *appointments.Service
	opts         Options
	logger       zerolog.Logger
}

func New(api BotAPI, wizard *booking.Wizard, store sessions.Store, appts *appointments.Service, opts Options, logger zerolog.Logger) *Bot {
	if opts.DateButtons <= 0 {
		opts.DateButtons = 9
	}
	if opts.ReminderTTL <= 0 {
		opts.ReminderTTL = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bot{
		api:          api,
		wizard:       wizard,
		sessions:     store,
		appointments: appts,
		opts:         opts,
		logger:       logger.With().Str("component", "receiver").Logger(),
	}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("tg:%d", userID)
}

// HandleUpdate processes one Telegram update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	key := sessionKey(m.From.ID)
	err := b.wizard.Guard(key, "message", func() error {
		b.message(ctx, key, m)
		return nil
	})
	if err != nil {
		b.reply(m.Chat.ID, b.userMessage(err))
	}
}

// message handles one text message. The caller holds the session's guard.
func (b *Bot) message(ctx context.Context, key string, m *tgbotapi.Message) {
	chatID := m.Chat.ID

	st, _, err := sessions.Load(ctx, b.sessions, key)
	if err != nil {
		b.logger.Error().Err(err).Str("session", key).Msg("load session")
		b.reply(chatID, msgSomethingWent)
		return
	}

	if m.IsCommand() && m.Command() == "start" {
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, m.MessageID)); err != nil {
			b.logger.Warn().Err(err).Msg("delete /start failed")
		}
		st = sessions.State{Booking: booking.NewSession(key), Screen: sessions.ScreenMain}
		header := fmt.Sprintf("Hello, %s!\nThis bot books appointments with our doctors and keeps track of your visits.", m.From.FirstName)
		b.show(ctx, chatID, key, st, header)
		return
	}

	text := strings.TrimSpace(m.Text)
	var (
		next   sessions.State
		header string
	)
	switch {
	case st.Screen == sessions.ScreenBooking && st.Booking.Step == booking.StepPatientInfo:
		next, header, err = b.dispatch(ctx, st, booking.SubmitPatient{Form: ParsePatient(text)})

	case st.Screen == sessions.ScreenBooking && st.Booking.Step == booking.StepDoctor:
		next, header, err = b.dispatch(ctx, st, booking.SearchDoctors{Query: text})

	case st.Screen == sessions.ScreenBooking && st.Booking.Step == booking.StepDateTime:
		var date time.Time
		if date, err = availability.ParseDate(text, b.opts.Window.Loc); err == nil {
			next, header, err = b.dispatch(ctx, st, booking.SelectDate{Date: date})
		}

	case st.Screen == sessions.ScreenLookupEmail:
		next, err = b.startLookup(ctx, st, text)

	case st.Screen == sessions.ScreenCancelReason:
		next, header, err = b.cancel(ctx, st, text)

	default:
		b.remind(chatID, m.MessageID)
		return
	}

	if err != nil {
		next, header = st, "⚠️ "+b.userMessage(err)
	}
	b.show(ctx, chatID, key, next, header)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	key := sessionKey(cq.From.ID)
	err := b.wizard.Guard(key, "callback", func() error {
		st, _, err := sessions.Load(ctx, b.sessions, key)
		if err != nil {
			b.logger.Error().Err(err).Str("session", key).Msg("load session")
			return errs.New(msgSomethingWent).Wrap(err)
		}
		next, header, err := b.route(ctx, st, cq.Data)
		if err != nil {
			return err
		}
		b.answer(cq.ID, "", false)
		b.edit(ctx, cq.Message.Chat.ID, cq.Message.MessageID, key, next, header)
		return nil
	})
	if err != nil {
		b.answer(cq.ID, b.userMessage(err), true)
	}
}

func (b *Bot) route(ctx context.Context, st sessions.State, data string) (sessions.State, string, error) {
	switch {
	case data == CbStart || data == CbMain:
		st.Screen = sessions.ScreenMain
		return st, "", nil

	case data == CbBook:
		out, err := b.wizard.Run(ctx, booking.NewSession(st.Booking.ID), booking.Start{})
		if err != nil {
			return st, "", err
		}
		st.Booking = out.Session
		st.Screen = sessions.ScreenBooking
		return st, "", nil

	case data == CbMy:
		st.Screen = sessions.ScreenLookupEmail
		return st, "", nil

	case data == CbHelp:
		st.Screen = sessions.ScreenHelp
		return st, "", nil

	case data == CbBack:
		return b.back(ctx, st)

	case data == CbClearSearch:
		return b.dispatch(ctx, st, booking.SearchDoctors{})

	case data == CbPayOnline:
		return b.dispatch(ctx, st, booking.ConfirmAndBook{TermsAccepted: true, PaymentMethod: model.PaymentMethodOnline})

	case data == CbPayOther:
		return b.dispatch(ctx, st, booking.ConfirmAndBook{TermsAccepted: true, PaymentMethod: model.PaymentMethodOther})
	}

	if val, ok := Is(data, PDep); ok {
		return b.dispatch(ctx, st, booking.SelectDepartment{ID: val})
	}
	if val, ok := Is(data, PDoc); ok {
		return b.dispatch(ctx, st, booking.SelectDoctor{ID: val})
	}
	if val, ok := Is(data, PD); ok {
		date, err := availability.ParseDate(val, b.opts.Window.Loc)
		if err != nil {
			return st, "", err
		}
		return b.dispatch(ctx, st, booking.SelectDate{Date: date})
	}
	if val, ok := Is(data, PT); ok {
		return b.dispatch(ctx, st, booking.SelectTimeSlot{Slot: val})
	}
	if val, ok := Is(data, PCancel); ok {
		st.Screen = sessions.ScreenCancelReason
		st.Pending = val
		return st, "", nil
	}

	b.logger.Warn().Str("data", data).Msg("unknown callback")
	return st, "", nil
}

// dispatch runs a wizard event. Buttons of an outdated screen are reported
// as gone instead of failing.
func (b *Bot) dispatch(ctx context.Context, st sessions.State, ev booking.Event) (sessions.State, string, error) {
	if st.Screen != sessions.ScreenBooking {
		return st, msgGone, nil
	}
	out, err := b.wizard.Run(ctx, st.Booking, ev)
	if err != nil {
		return st, "", err
	}
	st.Booking = out.Session
	if out.Submitted && out.Appointment != nil {
		st.Screen = sessions.ScreenMain
		return st, BookedText(*out.Appointment, b.appointments.When(*out.Appointment)), nil
	}
	if len(out.Ignored) > 0 {
		return st, msgGone, nil
	}
	return st, "", nil
}

func (b *Bot) back(ctx context.Context, st sessions.State) (sessions.State, string, error) {
	switch st.Screen {
	case sessions.ScreenBooking:
		if st.Booking.Step > booking.StepDepartment {
			return b.dispatch(ctx, st, booking.PreviousStep{})
		}
		st.Screen = sessions.ScreenMain
	case sessions.ScreenCancelReason:
		st.Screen = sessions.ScreenLookup
		st.Pending = ""
	default:
		st.Screen = sessions.ScreenMain
	}
	return st, "", nil
}

func (b *Bot) startLookup(ctx context.Context, st sessions.State, email string) (sessions.State, error) {
	if _, err := b.appointments.LookupByEmail(ctx, email); err != nil {
		return st, err
	}
	st.Screen = sessions.ScreenLookup
	st.Email = strings.TrimSpace(email)
	return st, nil
}

func (b *Bot) cancel(ctx context.Context, st sessions.State, reason string) (sessions.State, string, error) {
	a, err := b.appointments.Cancel(ctx, st.Pending, reason)
	if err != nil {
		return st, "", err
	}
	st.Screen = sessions.ScreenLookup
	st.Pending = ""
	return st, fmt.Sprintf("Your appointment on %s has been cancelled.", b.appointments.When(a)), nil
}

// render returns the text and keyboard of the current screen.
func (b *Bot) render(ctx context.Context, st sessions.State, header string) (string, tgbotapi.InlineKeyboardMarkup) {
	var (
		text string
		kb   tgbotapi.InlineKeyboardMarkup
	)
	if st.Screen == sessions.ScreenLookup {
		list, err := b.appointments.LookupByEmail(ctx, st.Email)
		if err != nil {
			b.logger.Error().Err(err).Msg("lookup for render")
			text, kb = b.userMessage(err), BackMenu()
		} else {
			text, kb = LookupText(st.Email, list, b.appointments.When), LookupMenu(list, b.appointments.When)
		}
	} else {
		text, kb = RenderText(st, b.opts), RenderKeyboard(st, b.opts, b.opts.Now())
	}
	if header != "" {
		text = header + "\n\n" + text
	}
	return text, kb
}

// show sends the screen as a new message and remembers it.
func (b *Bot) show(ctx context.Context, chatID int64, key string, st sessions.State, header string) {
	text, kb := b.render(ctx, st, header)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	sent, err := b.api.Send(msg)
	if err != nil {
		b.logger.Error().Err(err).Msg("send screen")
	} else {
		st.MessageID = sent.MessageID
	}
	b.save(ctx, key, st)
}

// edit redraws the screen in place.
func (b *Bot) edit(ctx context.Context, chatID int64, messageID int, key string, st sessions.State, header string) {
	text, kb := b.render(ctx, st, header)
	if _, err := b.api.Send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)); err != nil {
		b.logger.Warn().Err(err).Msg("edit screen")
	}
	st.MessageID = messageID
	b.save(ctx, key, st)
}

func (b *Bot) save(ctx context.Context, key string, st sessions.State) {
	if err := b.sessions.Save(ctx, key, st); err != nil {
		b.logger.Error().Err(err).Str("session", key).Msg("save session")
	}
}

func (b *Bot) answer(callbackID, text string, alert bool) {
	cb := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := b.api.Request(cb); err != nil {
		b.logger.Debug().Err(err).Msg("answer callback")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error().Err(err).Msg("send reply")
	}
}

// remind deletes free text the current screen does not expect and shows a
// short-lived hint.
func (b *Bot) remind(chatID int64, messageID int) {
	_, _ = b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))

	sent, err := b.api.Send(tgbotapi.NewMessage(chatID, msgUseButtons))
	if err != nil {
		return
	}
	time.AfterFunc(b.opts.ReminderTTL, func() {
		_, _ = b.api.Request(tgbotapi.NewDeleteMessage(chatID, sent.MessageID))
	})
}

// userMessage is the text shown for err. Failures outside the user's
// control are logged.
func (b *Bot) userMessage(err error) string {
	switch errs.KindOf(err) {
	case errs.KindInternal, errs.KindTransport:
		b.logger.Error().Err(err).Msg("request failed")
	}
	if msg := errs.Message(err); msg != "" {
		return msg
	}
	return msgSomethingWent
}

// ParsePatient reads the details message: name, email, phone, age and an
// optional reason, one per line. Blank lines are skipped.
func ParsePatient(text string) booking.PatientForm {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	field := func(i int) string {
		if i < len(lines) {
			return lines[i]
		}
		return ""
	}
	reason := ""
	if len(lines) > 4 {
		reason = strings.Join(lines[4:], " ")
	}
	return booking.PatientForm{
		Type:   booking.PatientGuest,
		Name:   field(0),
		Email:  field(1),
		Phone:  field(2),
		Age:    field(3),
		Reason: reason,
	}
}
