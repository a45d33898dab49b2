package tui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/ook/internal/embedding"
	"github.com/lepinkainen/ook/internal/enrichment"
	"github.com/lepinkainen/ook/internal/library"
	"github.com/lepinkainen/ook/internal/openlibrary"
	"github.com/lepinkainen/ook/internal/pipeline"
)

func TestProgressModelTracksEvents(t *testing.T) {
	events := make(chan pipeline.Event)
	m := newProgressModel(events)

	_, cmd := m.Update(eventMsg{Stage: pipeline.StageEnrich, Kind: pipeline.KindProgress, Current: 1, Total: 4, Label: "Dune", Elapsed: 3 * time.Second, ETA: 9 * time.Second})
	assert.NotNil(t, cmd)
	view := m.View()
	assert.Contains(t, view, "1/4")
	assert.Contains(t, view, `"Dune"`)
	assert.Contains(t, view, "~9s remaining")

	m.Update(eventMsg{Stage: pipeline.StageEnrich, Kind: pipeline.KindStageEnd, Label: "Enriched 3/4 with descriptions"})
	assert.Contains(t, m.View(), "Enriched 3/4 with descriptions")

	_, cmd = m.Update(eventMsg{Stage: pipeline.StageDone, Kind: pipeline.KindDone, Summary: &pipeline.Summary{Enriched: 3, Attempted: 4, Embedded: 4}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Contains(t, m.View(), "3 enriched (4 attempted), 4 embedded")
}

func TestProgressModelError(t *testing.T) {
	m := newProgressModel(nil)

	_, cmd := m.Update(eventMsg{Stage: pipeline.StageEmbed, Kind: pipeline.KindError, Err: "embed stage: disk full"})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "disk full")
}

func TestProgressModelDetach(t *testing.T) {
	m := newProgressModel(nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.True(t, m.detached)
}

func TestWaitForEventClosed(t *testing.T) {
	events := make(chan pipeline.Event)
	close(events)

	assert.Equal(t, streamClosedMsg{}, waitForEvent(events)())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "3m5s", formatDuration(3*time.Minute+5*time.Second))
	assert.Equal(t, "1h2m", formatDuration(time.Hour+2*time.Minute+30*time.Second))
}

type oneBookSource struct{}

func (oneBookSource) Search(context.Context, string, string) ([]openlibrary.SearchDoc, error) {
	return []openlibrary.SearchDoc{{Key: "/works/OL1W"}}, nil
}

func (oneBookSource) Work(_ context.Context, key string) (*openlibrary.Work, error) {
	return &openlibrary.Work{Key: key, Description: openlibrary.Description("text")}, nil
}

func TestRunSyncProgressDetachedViewStillCompletes(t *testing.T) {
	ctx := context.Background()
	store, err := library.Open(ctx, filepath.Join(t.TempDir(), "ook.db"), library.WithDimension(8))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	noSleep := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	enricher := enrichment.New(oneBookSource{}, store, enrichment.WithRequestDelay(0), enrichment.WithSleep(noSleep))
	orch := pipeline.New(store, enricher, embedding.Static(embedding.NewHashEmbedder(8)), pipeline.WithBookDelay(0))

	withProgram(t, func(m tea.Model) (tea.Model, error) {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
		return m, nil
	})

	stream := orch.Stream(ctx, pipeline.RunOptions{Books: []library.Book{{Key: "B001", Title: "Dune"}}})
	sum, err := RunSyncProgress(stream)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Summary{Imported: 1, Attempted: 1, Enriched: 1, Embedded: 1}, sum)
}
