// Package sender posts clinic notices to the staff Telegram channel.
package sender

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
)

// BotAPI is the part of *tgbotapi.BotAPI the sender uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Processor struct {
	config ProcessorConfig
	logger zerolog.Logger

	bot BotAPI
	loc *time.Location
}

func New(config ProcessorConfig, logger zerolog.Logger, bot BotAPI, loc *time.Location) *Processor {
	config.setDefaults()
	if loc == nil {
		loc = time.Local
	}
	return &Processor{
		config: config,
		logger: logger.With().Str("component", "sender").Logger(),
		bot:    bot,
		loc:    loc,
	}
}

// Send posts text to the channel, retrying with exponential backoff.
func (p *Processor) Send(ctx context.Context, text string) (int, error) {
	p.logger.Trace().Msg("In")
	defer p.logger.Trace().Msg("Out")

	msgToSend := p.message(text)

	var err error
	var msg tgbotapi.Message

	delay := p.config.Backoff
	for i := 0; i < p.config.Attempts; i++ {
		msg, err = p.bot.Send(msgToSend)
		if err == nil {
			return msg.MessageID, nil
		}
		p.logger.Warn().Err(err).Int("retry", i+1).Msg("send failed, retrying")

		if i == p.config.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return 0, errs.Transport("failed to send message").Wrap(ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	p.logger.Error().Err(err).Msg("send permanently failed")

	return 0, errs.Transport("failed to send message").Wrap(err)
}

func (p *Processor) NotifyBooked(ctx context.Context, a model.Appointment) error {
	_, err := p.Send(ctx, p.bookedText(a))
	return err
}

func (p *Processor) NotifyCancelled(ctx context.Context, a model.Appointment) error {
	_, err := p.Send(ctx, p.cancelledText(a))
	return err
}

// message addresses a numeric chat id or an @channel username.
func (p *Processor) message(text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(p.config.ChannelID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	return tgbotapi.NewMessageToChannel(p.config.ChannelID, text)
}

func (p *Processor) bookedText(a model.Appointment) string {
	var b strings.Builder
	b.WriteString("New appointment\n")
	fmt.Fprintf(&b, "Department: %s\n", a.DepartmentName)
	fmt.Fprintf(&b, "Doctor: %s\n", a.DoctorName)
	fmt.Fprintf(&b, "When: %s\n", p.when(a))
	fmt.Fprintf(&b, "Patient: %s, %d\n", a.PatientName, a.PatientAge)
	fmt.Fprintf(&b, "Contact: %s | %s\n", a.PatientEmail, a.PatientPhone)
	fmt.Fprintf(&b, "Payment: %s (%s), fee $%.2f", a.PaymentMethod, a.PaymentStatus, a.ConsultationFee)
	if a.Reason != "" {
		fmt.Fprintf(&b, "\nReason: %s", a.Reason)
	}
	fmt.Fprintf(&b, "\nID: %s", a.ID)
	return b.String()
}

func (p *Processor) cancelledText(a model.Appointment) string {
	return fmt.Sprintf("Appointment cancelled\nDoctor: %s\nWhen: %s\nPatient: %s\nReason: %s\nID: %s",
		a.DoctorName, p.when(a), a.PatientName, a.CancellationReason, a.ID)
}

func (p *Processor) when(a model.Appointment) string {
	t, err := time.Parse(time.RFC3339, a.AppointmentDate)
	if err != nil {
		return a.AppointmentDate + " " + a.TimeSlot
	}
	return t.In(p.loc).Format("Jan 2, 2006 03:04 PM")
}
