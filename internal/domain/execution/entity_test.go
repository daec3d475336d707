package execution

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	mp_errors "marketpulse/pkg/errors"
)

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func TestCanTransition(t *testing.T) {
	t.Run("ForwardMoves", func(t *testing.T) {
		assert.True(t, CanTransition(StatusPending, StatusProcessing))
		assert.True(t, CanTransition(StatusPending, StatusCompleted))
		assert.True(t, CanTransition(StatusPending, StatusFailed))
		assert.True(t, CanTransition(StatusPending, StatusTimedOut))
		assert.True(t, CanTransition(StatusProcessing, StatusCompleted))
		assert.True(t, CanTransition(StatusProcessing, StatusFailed))
		assert.True(t, CanTransition(StatusProcessing, StatusTimedOut))
	})

	t.Run("ProcessingIsIdempotent", func(t *testing.T) {
		assert.True(t, CanTransition(StatusProcessing, StatusProcessing))
	})

	t.Run("TerminalStatesAreSticky", func(t *testing.T) {
		for _, terminal := range []Status{StatusCompleted, StatusFailed, StatusTimedOut} {
			for _, to := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusTimedOut} {
				assert.False(t, CanTransition(terminal, to), "%s -> %s must be rejected", terminal, to)
			}
		}
	})

	t.Run("NoRegressionToPending", func(t *testing.T) {
		assert.False(t, CanTransition(StatusProcessing, StatusPending))
	})
}

func TestParseCallbackStatus(t *testing.T) {
	cases := map[string]Status{
		"Completed":  StatusCompleted,
		"SUCCESS":    StatusCompleted,
		"succeeded":  StatusCompleted,
		"Failed":     StatusFailed,
		"error":      StatusFailed,
		"FAILURE":    StatusFailed,
		"running":    StatusProcessing,
		"Processing": StatusProcessing,
		"QUEUED":     StatusProcessing,
		"  started ": StatusProcessing,
	}
	for raw, want := range cases {
		got, err := ParseCallbackStatus(raw)
		assert.NoError(t, err, "status %q", raw)
		assert.Equal(t, want, got, "status %q", raw)
	}

	t.Run("UnknownStatusRejected", func(t *testing.T) {
		_, err := ParseCallbackStatus("exploded")
		assert.ErrorIs(t, err, mp_errors.ErrInvalidInput)

		_, err = ParseCallbackStatus("")
		assert.ErrorIs(t, err, mp_errors.ErrInvalidInput)
	})
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusTimedOut.IsTerminal())
}

func TestNewPendingRecord(t *testing.T) {
	rec := NewPendingRecord("req-1", mustUUID(t), "wf-42", "CampaignPublished", nil, nil)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Nil(t, rec.CompletedAt)
	assert.Nil(t, rec.ResultPayload)
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
}
