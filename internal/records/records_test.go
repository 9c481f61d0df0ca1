package records

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/kvstore"
	"github.com/AMEND09/ID-Scanner/internal/scan"
)

func steppingClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Second)
	}
}

func TestAddKeepsNewestFirstAndCaps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New(kvstore.NewMemoryStore(), WithClock(steppingClock(time.Unix(0, 0))))

	for i := range 201 {
		_, err := store.Add(ctx, fmt.Sprintf("scan-%03d", i), true, nil)
		require.NoError(t, err)
	}

	all := store.Snapshot()
	require.Len(t, all, 200)
	assert.Equal(t, "scan-200", all[0].Label)
	assert.Equal(t, "scan-001", all[199].Label)
	assert.True(t, all[0].Timestamp.After(all[1].Timestamp))
}

func TestAddAtUsesGivenTimestamp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := time.Date(2026, time.October, 17, 3, 19, 10, 0, time.UTC)
	store := New(kvstore.NewMemoryStore(), WithClock(func() time.Time { return clock }))

	read := time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC)
	rec, err := store.AddAt(ctx, read, "123456789", false, nil)
	require.NoError(t, err)
	assert.True(t, rec.Timestamp.Equal(read))

	rec, err = store.Add(ctx, "987654321", false, nil)
	require.NoError(t, err)
	assert.True(t, rec.Timestamp.Equal(clock))
}

func TestListLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New(kvstore.NewMemoryStore())
	for _, label := range []string{"a", "b", "c"} {
		_, err := store.Add(ctx, label, false, nil)
		require.NoError(t, err)
	}

	got := store.List(2)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Label)
	assert.Equal(t, "b", got[1].Label)
	assert.Len(t, store.List(0), 3)
	assert.Len(t, store.List(10), 3)

	got[0].Label = "mutated"
	assert.Equal(t, "c", store.List(1)[0].Label)
}

func TestMarkAllSucceeded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New(kvstore.NewMemoryStore())
	_, _ = store.Add(ctx, "a", false, nil)
	_, _ = store.Add(ctx, "b", true, nil)
	assert.Equal(t, 1, store.Pending())

	require.NoError(t, store.MarkAllSucceeded(ctx))
	assert.Zero(t, store.Pending())
}

func TestPersistAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := kvstore.NewMemoryStore()

	first := New(kv)
	snap := scan.SnapshotOf(scan.Classify(`{"id":"123","fn":"Ann","gr":"5"}`))
	_, err := first.Add(ctx, "Ann", true, snap)
	require.NoError(t, err)

	second := New(kv)
	require.NoError(t, second.Load(ctx))
	got := second.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "Ann", got[0].Label)
	require.NotNil(t, got[0].Payload)
	assert.Equal(t, "5", got[0].Payload.Grade)
}

func TestLoadIgnoresCorruptState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, kvstore.KeyRecentScans, "{not json"))

	store := New(kv)
	require.NoError(t, store.Load(ctx))
	assert.Zero(t, store.Len())
}

func TestLoadTruncatesToCapacity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	big := New(kv, WithCapacity(10))
	for i := range 10 {
		_, _ = big.Add(ctx, fmt.Sprint(i), true, nil)
	}

	small := New(kv, WithCapacity(3))
	require.NoError(t, small.Load(ctx))
	assert.Equal(t, 3, small.Len())
	assert.Equal(t, "9", small.List(1)[0].Label)
}

type failingKV struct{ kvstore.MemoryStore }

func (*failingKV) Set(context.Context, string, string) error {
	return errors.NewStd("disk full")
}

func TestAddKeepsRecordWhenPersistFails(t *testing.T) {
	t.Parallel()

	store := New(&failingKV{})
	_, err := store.Add(context.Background(), "a", false, nil)
	require.Error(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestSubscribersNotified(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New(kvstore.NewMemoryStore())

	var changes []Change
	store.Subscribe(func(c Change) { changes = append(changes, c) })

	_, _ = store.Add(ctx, "a", false, nil)
	_ = store.MarkAllSucceeded(ctx)

	require.Len(t, changes, 2)
	assert.Equal(t, ChangeAdded, changes[0].Type)
	assert.Equal(t, "a", changes[0].Record.Label)
	assert.Equal(t, ChangeResynced, changes[1].Type)
	assert.Equal(t, 1, changes[1].Count)
}
