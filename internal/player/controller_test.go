package player

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statisfy/internal/core"
	"statisfy/internal/hydrate"
	"statisfy/internal/i18n"
	"statisfy/internal/metrics"
	"statisfy/internal/queue"
	"statisfy/internal/shuffle"
)

type fakeDevice struct {
	mu        sync.Mutex
	played    []string
	skipsNext int
	skipsPrev int
	playErr   error
	skipErr   error
}

func (d *fakeDevice) StartPlayback(_ context.Context, uri string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playErr != nil {
		return d.playErr
	}
	d.played = append(d.played, uri)
	return nil
}

func (d *fakeDevice) PlaybackSnapshot(context.Context) (*core.PlaybackSnapshot, error) {
	return nil, nil
}

func (d *fakeDevice) SkipNext(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.skipsNext++
	return d.skipErr
}

func (d *fakeDevice) SkipPrevious(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.skipsPrev++
	return d.skipErr
}

func (d *fakeDevice) lastPlayed() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.played) == 0 {
		return ""
	}
	return d.played[len(d.played)-1]
}

type fakeSource struct {
	uris map[string][]string
	err  error
}

func (s *fakeSource) ContextTrackURIs(_ context.Context, sourceType core.SourceType, sourceID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.uris[string(sourceType)+":"+sourceID], nil
}

type fakeCatalog struct {
	tracks map[string]core.TrackMetadata
}

func (c *fakeCatalog) LookupTracks(_ context.Context, uris []string) ([]core.TrackMetadata, error) {
	var out []core.TrackMetadata
	for _, uri := range uris {
		if meta, ok := c.tracks[uri]; ok {
			out = append(out, meta)
		}
	}
	return out, nil
}

type fixture struct {
	store      *queue.Store
	device     *fakeDevice
	controller *Controller
	metrics    *metrics.Metrics
}

func newFixture(t *testing.T, opts Options) fixture {
	t.Helper()
	store := queue.NewStore(queue.Options{Circular: true, Rand: shuffle.NewSource(7)}, nil)
	device := &fakeDevice{}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	c := New(store, queue.NewContext(store, nil), device, opts, nil)
	t.Cleanup(c.Close)
	return fixture{store: store, device: device, controller: c, metrics: opts.Metrics}
}

func track(id string) string { return "spotify:track:" + id }

func TestPlayContextSeedsQueue(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.ErrorIs(t, f.controller.PlayContext(ctx), ErrEmptyContext)

	idx := f.controller.SetContext(core.SourceAlbum, "album-1", []string{track("a"), track("b"), track("c")}, track("b"))
	assert.Equal(t, 1, idx)
	assert.Equal(t, 0, f.store.Len(), "setting a context must not touch the queue")

	require.NoError(t, f.controller.PlayContext(ctx))
	snap := f.store.Snapshot()
	assert.Equal(t, []string{track("a"), track("b"), track("c")}, snap.Tracks)
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.Equal(t, core.SourceAlbum, snap.SourceType)
	assert.Equal(t, "album-1", snap.SourceID)
	assert.Equal(t, track("b"), f.device.lastPlayed())
}

func TestLoadContextFromSource(t *testing.T) {
	source := &fakeSource{uris: map[string][]string{"playlist:p1": {track("x"), track("y")}}}
	f := newFixture(t, Options{Source: source})

	idx, err := f.controller.LoadContext(context.Background(), core.SourcePlaylist, "p1", "")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	require.NoError(t, f.controller.PlayContext(context.Background()))
	assert.Equal(t, track("x"), f.device.lastPlayed())
}

func TestLoadContextFailureSurfacesStatus(t *testing.T) {
	f := newFixture(t, Options{Source: &fakeSource{err: errors.New("rate limited")}})

	_, err := f.controller.LoadContext(context.Background(), core.SourceArtist, "artist-1", "")
	require.Error(t, err)

	_, msg := f.store.Status()
	assert.Equal(t, i18n.NewLocalizer("en").T("error.context.load_failed", "artist"), msg)
}

func TestLoadContextWithoutSource(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.controller.LoadContext(context.Background(), core.SourceAlbum, "x", "")
	assert.ErrorIs(t, err, ErrNoContextSource)
}

func TestNextAndPreviousWalkQueue(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.controller.SetContext(core.SourceAlbum, "a", []string{track("a"), track("b"), track("c")}, track("a"))
	require.NoError(t, f.controller.PlayContext(ctx))

	require.NoError(t, f.controller.Next(ctx))
	assert.Equal(t, track("b"), f.device.lastPlayed())
	require.NoError(t, f.controller.Next(ctx))
	assert.Equal(t, track("c"), f.device.lastPlayed())

	require.NoError(t, f.controller.Previous(ctx))
	assert.Equal(t, track("b"), f.device.lastPlayed())
	require.NoError(t, f.controller.Previous(ctx))
	assert.Equal(t, track("a"), f.device.lastPlayed())
	assert.Equal(t, 0, f.device.skipsPrev)
}

func TestNextFallsBackToDeviceSkip(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.controller.Next(ctx))
	require.NoError(t, f.controller.Previous(ctx))
	assert.Equal(t, 1, f.device.skipsNext)
	assert.Equal(t, 1, f.device.skipsPrev)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DeviceCommandsTotal.WithLabelValues(CommandSkipNext, metrics.ResultSuccess)))
}

func TestNextAtEndOfNonCircularQueue(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.controller.SetContext(core.SourceAlbum, "a", []string{track("a"), track("b")}, track("b"))
	require.NoError(t, f.controller.PlayContext(ctx))
	f.controller.SetCircular(false)

	require.NoError(t, f.controller.Next(ctx))
	assert.Equal(t, 1, f.device.skipsNext)
	assert.Equal(t, 1, f.store.CurrentIndex())
}

func TestPlaybackFailureSurfacesStatus(t *testing.T) {
	f := newFixture(t, Options{})
	f.device.playErr = errors.New("no active device")
	f.controller.SetContext(core.SourceAlbum, "a", []string{track("a")}, "")

	err := f.controller.PlayContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start playback")

	_, msg := f.store.Status()
	assert.Equal(t, i18n.NewLocalizer("en").T("error.playback.start_failed"), msg)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DeviceCommandsTotal.WithLabelValues(CommandPlay, metrics.ResultFailure)))
}

func TestPlayIndex(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.SetQueue([]string{track("a"), track("b")}, 0)

	require.NoError(t, f.controller.PlayIndex(context.Background(), 1))
	assert.Equal(t, track("b"), f.device.lastPlayed())
	assert.ErrorIs(t, f.controller.PlayIndex(context.Background(), 5), ErrInvalidIndex)
}

func TestAddAcceptsLinksAndRejectsGarbage(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.SetQueue([]string{track("a"), track("b")}, 0)

	added, err := f.controller.AddNext("https://open.spotify.com/track/n1?si=abc")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{track("a"), track("n1"), track("b")}, f.store.Tracks())

	added, err = f.controller.AddToEnd(track("a"))
	require.NoError(t, err)
	assert.False(t, added, "duplicates are refused")

	_, err = f.controller.AddToEnd("not a track")
	assert.Error(t, err)
}

func TestOnTrackEndedAdvances(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.store.SetQueue([]string{track("a"), track("b")}, 0)

	f.controller.OnTrackEnded(ctx, track("other"))
	assert.Equal(t, 0, f.store.CurrentIndex())

	f.controller.OnTrackEnded(ctx, track("a"))
	assert.Equal(t, 1, f.store.CurrentIndex())
	assert.Equal(t, track("b"), f.device.lastPlayed())

	f.store.SetCircular(false)
	f.controller.OnTrackEnded(ctx, track("b"))
	assert.Equal(t, 1, f.store.CurrentIndex())
	assert.Equal(t, 0, f.device.skipsNext)
}

func TestClearKeepsCurrentTrack(t *testing.T) {
	f := newFixture(t, Options{})
	f.controller.SetContext(core.SourceAlbum, "a", []string{track("a"), track("b"), track("c")}, track("b"))
	require.NoError(t, f.controller.PlayContext(context.Background()))

	f.controller.Clear()
	assert.Equal(t, []string{track("b")}, f.store.Tracks())
	assert.Equal(t, 0, f.store.CurrentIndex())
	assert.Equal(t, core.SourceAlbum, f.controller.Snapshot().SourceType)
}

func TestClearContextForgetsContext(t *testing.T) {
	f := newFixture(t, Options{})
	f.controller.SetContext(core.SourceAlbum, "a", []string{track("a")}, "")
	require.NoError(t, f.controller.PlayContext(context.Background()))

	f.controller.ClearContext()
	assert.Equal(t, 0, f.store.Len())
	assert.ErrorIs(t, f.controller.PlayContext(context.Background()), ErrEmptyContext)
}

func TestHydrationAndFind(t *testing.T) {
	catalog := &fakeCatalog{tracks: map[string]core.TrackMetadata{
		track("a"): {URI: track("a"), ID: "a", Name: "Bohemian Rhapsody", Artists: []string{"Queen"}},
		track("b"): {URI: track("b"), ID: "b", Name: "Hey Jude (Remastered 2015)", Artists: []string{"The Beatles"}},
	}}
	hydrator := hydrate.New(catalog, hydrate.Options{}, nil)
	f := newFixture(t, Options{Hydrator: hydrator})

	f.controller.SetContext(core.SourceSearch, "q", []string{track("a"), track("b"), track("gone")}, "")
	require.NoError(t, f.controller.PlayContext(context.Background()))
	f.controller.Wait()

	items := f.store.TrackItems()
	require.Len(t, items, 3)
	assert.Equal(t, "Bohemian Rhapsody", items[0].Name)
	assert.True(t, items[2].Placeholder)

	assert.Equal(t, []int{1}, f.controller.Find("hey jude"))
	assert.Equal(t, []int{0}, f.controller.Find("queen"))
	assert.Empty(t, f.controller.Find("zzz"))

	assert.Equal(t, "Queen - Bohemian Rhapsody", f.controller.Label(items[0]))
	assert.Equal(t, "Unknown track (gone)", f.controller.Label(items[2]))
}

func TestScheduleHydrationAfterClose(t *testing.T) {
	hydrator := hydrate.New(&fakeCatalog{}, hydrate.Options{}, nil)
	f := newFixture(t, Options{Hydrator: hydrator})
	f.controller.Close()

	f.controller.ScheduleHydration()
	f.controller.Wait()
	assert.Equal(t, 0, f.controller.Rehydrate(context.Background()))
}
