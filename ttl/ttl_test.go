package ttl

import (
	"testing"
	"time"

	"github.com/gozephyr/vstorage/errors"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("Negative retention", func(t *testing.T) {
		err := Validate(-1 * time.Second)
		require.Error(t, err)
		require.ErrorIs(t, err, errors.ErrInvalidRetention)
		require.ErrorIs(t, err, errors.ErrInvalidConfiguration)
	})

	t.Run("Zero retention allowed", func(t *testing.T) {
		require.NoError(t, Validate(NoRetention))
	})

	t.Run("Positive retention allowed", func(t *testing.T) {
		require.NoError(t, Validate(10*time.Second))
	})
}

func TestDeadline(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("No retention means no deadline", func(t *testing.T) {
		require.True(t, Deadline(created, NoRetention).IsZero())
	})

	t.Run("Deadline is creation plus retention", func(t *testing.T) {
		require.Equal(t, created.Add(time.Minute), Deadline(created, time.Minute))
	})
}

func TestIsExpired(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Never expires without retention", func(t *testing.T) {
		require.False(t, IsExpired(created, NoRetention, created.Add(100*time.Hour)))
	})

	t.Run("Within window is not expired", func(t *testing.T) {
		require.False(t, IsExpired(created, time.Minute, created.Add(30*time.Second)))
	})

	t.Run("Exactly at deadline is not expired", func(t *testing.T) {
		require.False(t, IsExpired(created, time.Minute, created.Add(time.Minute)))
	})

	t.Run("Past deadline is expired", func(t *testing.T) {
		require.True(t, IsExpired(created, time.Minute, created.Add(61*time.Second)))
	})
}

func TestRemaining(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, NoRetention, Remaining(created, NoRetention, created))
	require.Equal(t, 40*time.Second, Remaining(created, time.Minute, created.Add(20*time.Second)))
	require.Less(t, Remaining(created, time.Minute, created.Add(2*time.Minute)), time.Duration(0))
}

func TestSystemClock(t *testing.T) {
	require.WithinDuration(t, time.Now(), SystemClock(), time.Second)
}
