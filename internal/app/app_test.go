package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/kvstore"
	"github.com/AMEND09/ID-Scanner/internal/records"
	"github.com/AMEND09/ID-Scanner/internal/scan"
	"github.com/AMEND09/ID-Scanner/internal/session"
)

type fakeMQTT struct {
	mu     sync.Mutex
	topics []string
	closed bool
}

func (f *fakeMQTT) Connect(context.Context) error { return nil }
func (f *fakeMQTT) IsConnected() bool             { return true }

func (f *fakeMQTT) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeMQTT) Publish(_ context.Context, topic string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return nil
}

type nopWriter struct{}

func (nopWriter) AppendSingleAsync(context.Context, scan.Payload, time.Time) {}
func (nopWriter) Wait()                                                      {}

func testSettings() *conf.Settings {
	s := conf.DefaultSettings()
	s.Storage.Type = "memory"
	return s
}

func TestNewLoadsStoredHistory(t *testing.T) {
	t.Parallel()

	kv := kvstore.NewMemoryStore()
	seed := records.New(kv)
	_, err := seed.Add(t.Context(), "Ann Lee", true, nil)
	require.NoError(t, err)

	a, err := New(t.Context(), testSettings(), WithKVStore(kv))
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	assert.Equal(t, 1, a.Records.Len())
	assert.Equal(t, "Ann Lee", a.Records.List(1)[0].Label)
	assert.NotNil(t, a.Metrics)
	assert.NotNil(t, a.Frames)
}

func TestNewOpensConfiguredStorage(t *testing.T) {
	t.Parallel()

	a, err := New(t.Context(), testSettings())
	require.NoError(t, err)
	assert.Equal(t, 0, a.Records.Len())
	require.NoError(t, a.Close())
}

func TestResumeWithoutTokenLeavesSignedOut(t *testing.T) {
	t.Parallel()

	a, err := New(t.Context(), testSettings(), WithKVStore(kvstore.NewMemoryStore()))
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	a.Resume(t.Context())
	_, ok := a.Sessions.Current()
	assert.False(t, ok)

	_, err = a.Sessions.StartScanner(t.Context())
	require.ErrorIs(t, err, session.ErrNotSignedIn)
}

func TestRecordsArePublishedOverMQTT(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.MQTT.Topic = "school"
	client := &fakeMQTT{}

	a, err := New(t.Context(), settings, WithKVStore(kvstore.NewMemoryStore()), WithMQTTClient(client))
	require.NoError(t, err)

	p := scan.Numeric{ID: "123456789"}
	_, err = a.Records.Add(t.Context(), p.Label(), false, scan.SnapshotOf(p))
	require.NoError(t, err)

	// Close drains the publisher queue.
	require.NoError(t, a.Close())

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, []string{"school/scans"}, client.topics)
	assert.True(t, client.closed)
}

func TestPipelineFollowsScannerSettings(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Scanner.Matrix = false
	a, err := New(t.Context(), settings, WithKVStore(kvstore.NewMemoryStore()))
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	p := a.newPipeline(nopWriter{})
	require.NoError(t, p.Start(t.Context()))
	assert.True(t, p.Running())
	p.Stop()
	assert.False(t, p.Running())
}

func TestRunClosesTheApp(t *testing.T) {
	t.Parallel()

	client := &fakeMQTT{}
	var seen *App
	err := Run(t.Context(), testSettings(), func(a *App) error {
		seen = a
		return nil
	}, WithKVStore(kvstore.NewMemoryStore()), WithMQTTClient(client))
	require.NoError(t, err)
	require.NotNil(t, seen)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.True(t, client.closed)
}
