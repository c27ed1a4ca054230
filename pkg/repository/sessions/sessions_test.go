package sessions

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/napryag/clinic_booking_bot/pkg/domain/booking"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() State {
	s := booking.NewSession("42")
	s.Step = booking.StepDateTime
	s.Department = &model.Department{ID: "dept-cardio", Name: "Cardiology", Status: model.StatusActive}
	s.Doctor = &model.Doctor{ID: "doc-1", Name: "Dr. Sarah Johnson", ConsultationFee: 150, AvailableDays: []string{"Monday"}}
	s.Date = "2026-10-19"
	s.Slots = []string{"09:00", "09:30"}
	return State{Booking: s, Screen: ScreenBooking, MessageID: 7}
}

func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.Get(ctx, "42")
	assert.True(t, errs.Is(err, errs.KindNotFound))

	fresh, found, err := Load(ctx, store, "42")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, booking.StepDepartment, fresh.Booking.Step)
	assert.Equal(t, "42", fresh.Booking.ID)
	assert.Equal(t, ScreenMain, fresh.Screen)

	want := sampleState()
	require.NoError(t, store.Save(ctx, "42", want))

	got, found, err := Load(ctx, store, "42")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	require.NoError(t, store.Delete(ctx, "42"))
	_, err = store.Get(ctx, "42")
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	testStore(t, NewRedisStore(client, "", 0))
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "test:", time.Hour)

	require.NoError(t, store.Save(context.Background(), "42", sampleState()))
	assert.True(t, mr.Exists("test:42"))
	assert.Equal(t, time.Hour, mr.TTL("test:42"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(context.Background(), "42")
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	store := NewRedisStore(client, "", 0)
	mr.Close()

	_, err := store.Get(context.Background(), "42")
	assert.True(t, errs.Is(err, errs.KindTransport))
}
