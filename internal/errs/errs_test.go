package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_TableTests(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "classified error",
			err:  E(NotFound, "plan not found"),
			want: NotFound,
		},
		{
			name: "wrapped classified error",
			err:  fmt.Errorf("storage.GetPlan: %w", E(NotConfigured, "store unavailable")),
			want: NotConfigured,
		},
		{
			name: "classified with cause",
			err:  Wrap(GatewayFailure, "payment provider call failed", errors.New("timeout")),
			want: GatewayFailure,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "plan not found", Message(E(NotFound, "plan not found")))
	assert.Equal(t, "internal error", Message(errors.New("pq: connection refused")))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := Wrap(GatewayFailure, "voice agent call failed", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "gateway_failure")
	assert.Contains(t, err.Error(), cause.Error())
}
