package recordstore

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireTrueWithinDuration(t *testing.T, maxTime time.Duration, test func() bool) {
	deadline := time.Now().Add(maxTime)
	for {
		if time.Now().After(deadline) {
			require.FailNowf(t, "Did not see expected change", "waited %v", maxTime)
		}
		if test() {
			return
		}
		time.Sleep(time.Millisecond * 50)
	}
}

func TestWatchReloadsExternallyEditedCollection(t *testing.T) {
	ctx := context.Background()
	widgets, backend, store := newTestCollection(t)
	_, err := widgets.Create(ctx, &widget{Meta: Meta{ID: "w1"}, Name: "original"})
	require.NoError(t, err)

	closeCh := make(chan struct{})
	defer close(closeCh)
	require.NoError(t, Watch(backend.Dir(), store.Names(), nil, store.Invalidate, closeCh))
	time.Sleep(100 * time.Millisecond)

	edited := `[{"id":"w1","created_at":"2024-01-01T00:00:00Z","name":"edited by hand","count":0}]`
	require.NoError(t, os.WriteFile(backend.Path("widgets"), []byte(edited), 0o644))

	requireTrueWithinDuration(t, 3*time.Second, func() bool {
		w, ok := widgets.Get(ctx, "w1")
		return ok && w.Name == "edited by hand"
	})
}

func TestWatchIgnoresUnrelatedFiles(t *testing.T) {
	_, backend, store := newTestCollection(t)
	var calls atomic.Int32
	store.OnInvalidate(func(string) { calls.Add(1) })

	closeCh := make(chan struct{})
	defer close(closeCh)
	require.NoError(t, Watch(backend.Dir(), store.Names(), nil, store.Invalidate, closeCh))
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(backend.Dir()+"/notes.txt", []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(backend.Dir()+"/others.json", []byte("[]"), 0o644))
	time.Sleep(300 * time.Millisecond)

	assert.Zero(t, calls.Load())
}
