package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/clinic_booking_bot/pkg/config"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/repository/sessions"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		HTTPPort: 8080,
		Store: config.StoreConfig{
			Driver:   config.DriverMemory,
			SeedPath: "../repository/memstore/testdata/seed.yml",
		},
		Sessions: config.SessionsConfig{Driver: config.DriverMemory, TTL: time.Hour},
		Clinic: config.ClinicConfig{
			Timezone:            "UTC",
			BookingWindowMonths: 3,
			SupportPhone:        "+1 555 010 0000",
		},
	}
}

func TestNew_Memory(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	depts, err := a.Catalog.ActiveDepartments(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, depts)

	out, err := a.Wizard.Begin(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, depts, out.Session.Departments)
	assert.IsType(t, &sessions.MemoryStore{}, a.Sessions)
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.Sessions.Driver = config.DriverRedis
	cfg.Sessions.RedisAddr = mr.Addr()

	a, err := New(context.Background(), cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Sessions.Save(context.Background(), "k", sessions.State{Screen: sessions.ScreenHelp}))
	assert.True(t, mr.Exists("clinic:session:k"))
}

func TestNew_RedisUnreachable(t *testing.T) {
	cfg := memoryConfig()
	cfg.Sessions.Driver = config.DriverRedis
	cfg.Sessions.RedisAddr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg, nil, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindTransport))
}

func TestNew_BadSeed(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.SeedPath = "testdata/missing.yml"

	_, err := New(context.Background(), cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}

type nopAPI struct{}

func (nopAPI) Send(tgbotapi.Chattable) (tgbotapi.Message, error) { return tgbotapi.Message{}, nil }

func TestNotifier(t *testing.T) {
	cfg := memoryConfig()
	assert.Nil(t, Notifier(cfg, nopAPI{}, zerolog.Nop()))

	cfg.ChannelID = "@clinic_staff"
	n := Notifier(cfg, nopAPI{}, zerolog.Nop())
	require.NotNil(t, n)
	assert.NoError(t, n.NotifyBooked(context.Background(), model.Appointment{ID: "a1"}))
}
