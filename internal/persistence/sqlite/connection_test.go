package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ground-booking/internal/persistence"
)

func TestErrorMapper(t *testing.T) {
	t.Parallel()

	mapper := NewErrorMapper()
	cases := []struct {
		message string
		want    error
	}{
		{"UNIQUE constraint failed: bookings.id", persistence.ErrDuplicate},
		{"FOREIGN KEY constraint failed", persistence.ErrForeignKeyViolation},
		{"CHECK constraint failed: start_minute >= 0", persistence.ErrConstraintViolation},
		{"database is locked (5) (SQLITE_BUSY)", errBusy},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, mapper.MapError(errors.New(tc.message)), tc.want, tc.message)
	}

	overlap := persistence.ErrOverlap
	assert.Same(t, overlap, mapper.MapError(overlap))
	assert.NoError(t, mapper.MapError(nil))
}

func TestRetryHelper(t *testing.T) {
	t.Parallel()

	fast := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}

	t.Run("retries busy errors until success", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		err := NewRetryHelper(fast).WithRetry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		err := NewRetryHelper(fast).WithRetry(context.Background(), func() error {
			attempts++
			return errors.New("database is locked")
		})
		require.ErrorIs(t, err, errBusy)
		assert.Equal(t, 3, attempts)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		err := NewRetryHelper(fast).WithRetry(context.Background(), func() error {
			attempts++
			return persistence.ErrOverlap
		})
		require.ErrorIs(t, err, persistence.ErrOverlap)
		assert.Equal(t, 1, attempts)
	})
}
