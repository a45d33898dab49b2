package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamDeliversEventsUntilDone(t *testing.T) {
	f := newFixture(t)

	s := f.orch.Stream(context.Background(), RunOptions{Books: testBooks()})

	var events []Event
	for e := range s.Events() {
		events = append(events, e)
	}
	require.NotEmpty(t, events)
	assert.Equal(t, KindDone, events[len(events)-1].Kind)
	for _, e := range events[:len(events)-1] {
		assert.False(t, e.Terminal())
	}

	sum, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Embedded)
}

func TestStreamSurvivesCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	s := f.orch.Stream(ctx, RunOptions{Books: testBooks()})
	cancel()
	s.Detach()

	sum, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, Summary{Imported: 3, Attempted: 3, Enriched: 1, Embedded: 3}, sum)

	stats, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.WithEmbeddings)
}

func TestStreamDetachAfterPartialRead(t *testing.T) {
	f := newFixture(t)

	s := f.orch.Stream(context.Background(), RunOptions{Books: testBooks()})
	first := <-s.Events()
	assert.Equal(t, KindStageStart, first.Kind)
	s.Detach()
	s.Detach()

	_, err := s.Wait()
	require.NoError(t, err)

	// The channel is closed once the run ends.
	for range s.Events() {
	}
}
