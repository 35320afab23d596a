package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("disk full")

	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"config", Configf("bad morphology %q", "x"), KindConfig},
		{"range", Rangef("id %d >= %d", 12, 12), KindRange},
		{"skip", Skip("out of coverage", cause), KindSkip},
		{"storage", Storage("insert parameters", cause), KindStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.Equal(t, tt.kind, KindOf(wrapped))
			assert.Equal(t, tt.kind == KindConfig, IsConfig(wrapped))
			assert.Equal(t, tt.kind == KindRange, IsRange(wrapped))
			assert.Equal(t, tt.kind == KindSkip, IsSkip(wrapped))
			assert.Equal(t, tt.kind == KindStorage, IsStorage(wrapped))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("constraint failed")
	err := Storage("insert curves", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "STORAGE: insert curves: constraint failed", err.Error())
	assert.Equal(t, "RANGE: out", Rangef("out").Error())
	assert.Equal(t, Kind(""), KindOf(cause))
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "detached", ClassDetached.String())
	assert.Equal(t, "overcontact", ClassOvercontact.String())
	assert.Equal(t, "none", ClassNone.String())
}
