package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedChecker blocks each call until released or its context ends.
type gatedChecker struct {
	entered chan AvailabilityQuery
	release chan AvailabilityResult
}

func newGatedChecker() *gatedChecker {
	return &gatedChecker{
		entered: make(chan AvailabilityQuery, 4),
		release: make(chan AvailabilityResult, 4),
	}
}

func (g *gatedChecker) CheckAvailability(ctx context.Context, query AvailabilityQuery) (AvailabilityResult, error) {
	g.entered <- query
	select {
	case result := <-g.release:
		return result, nil
	case <-ctx.Done():
		return AvailabilityResult{}, ctx.Err()
	}
}

func TestAvailabilityProbe_NewerProbeSupersedesOlder(t *testing.T) {
	t.Parallel()

	checker := newGatedChecker()
	probe := NewAvailabilityProbe(checker)

	olderErr := make(chan error, 1)
	go func() {
		_, err := probe.Check(context.Background(), "client-1", availabilityQuery("2024-01-10", "08:00", "10:00"))
		olderErr <- err
	}()
	<-checker.entered

	newerResult := make(chan AvailabilityResult, 1)
	go func() {
		result, err := probe.Check(context.Background(), "client-1", availabilityQuery("2024-01-10", "09:00", "11:00"))
		assert.NoError(t, err)
		newerResult <- result
	}()
	<-checker.entered

	select {
	case err := <-olderErr:
		require.True(t, errors.Is(err, ErrProbeSuperseded), "got %v", err)
	case <-time.After(time.Second):
		t.Fatal("older probe was not cancelled")
	}

	checker.release <- AvailabilityResult{Available: true, Message: "slot is available"}
	select {
	case result := <-newerResult:
		assert.True(t, result.Available)
	case <-time.After(time.Second):
		t.Fatal("newer probe did not finish")
	}

	require.Eventually(t, func() bool { return probe.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestAvailabilityProbe_IndependentClients(t *testing.T) {
	t.Parallel()

	checker := newGatedChecker()
	probe := NewAvailabilityProbe(checker)

	results := make(chan error, 2)
	for _, key := range []string{"client-1", "client-2"} {
		go func(key string) {
			_, err := probe.Check(context.Background(), key, availabilityQuery("2024-01-10", "08:00", "10:00"))
			results <- err
		}(key)
	}
	<-checker.entered
	<-checker.entered
	checker.release <- AvailabilityResult{Available: true}
	checker.release <- AvailabilityResult{Available: true}

	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("probe did not finish")
		}
	}
}

func TestAvailabilityProbe_CallerCancellationIsNotSupersession(t *testing.T) {
	t.Parallel()

	checker := newGatedChecker()
	probe := NewAvailabilityProbe(checker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := probe.Check(ctx, "client-1", availabilityQuery("2024-01-10", "08:00", "10:00"))
		done <- err
	}()
	<-checker.entered
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrProbeSuperseded)
	case <-time.After(time.Second):
		t.Fatal("probe ignored cancellation")
	}
}

func TestAvailabilityProbe_EmptyKeyBypassesTracking(t *testing.T) {
	t.Parallel()

	checker := newGatedChecker()
	checker.release <- AvailabilityResult{Available: false, Message: "taken"}
	probe := NewAvailabilityProbe(checker)

	result, err := probe.Check(context.Background(), "", availabilityQuery("2024-01-10", "08:00", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, "taken", result.Message)
	assert.Equal(t, 0, probe.Pending())
}
