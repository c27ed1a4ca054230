package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormat(t *testing.T) {
	err := New("failed to load").Arg("path", "etc/app.yml").Wrap(errors.New("no such file"))
	assert.Equal(t, "{msg: failed to load, args: map[path:etc/app.yml], wrappedError: {no such file}}", err.Error())

	nested := New("outer").Wrap(New("inner"))
	assert.Equal(t, "{msg: outer, wrappedError: {msg: inner}}", nested.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindInternal},
		{"plain", errors.New("boom"), KindInternal},
		{"direct", Validation("bad email"), KindValidation},
		{"inherited by wrap", New("create appointment").Wrap(Transport("store down")), KindTransport},
		{"outer kind wins", Conflict("not cancellable").Wrap(Transport("x")), KindConflict},
		{"through fmt wrap", fmt.Errorf("ctx: %w", NotFound("missing")), KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "plain", Message(errors.New("plain")))

	err := Validation("Please enter a valid email address").Arg("email", "a@b")
	assert.Equal(t, "Please enter a valid email address", Message(err))

	wrapped := fmt.Errorf("dispatch: %w", err)
	assert.Equal(t, "Please enter a valid email address", Message(wrapped))

	var ce *CustomError
	require.ErrorAs(t, wrapped, &ce)
	assert.True(t, Is(wrapped, KindValidation))
	assert.Equal(t, "validation", ce.Kind().String())
}
