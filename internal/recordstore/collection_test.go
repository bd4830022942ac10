package recordstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	Meta
	Name  string            `json:"name"`
	Tags  []string          `json:"tags,omitempty"`
	Attrs map[string]string `json:"attrs,omitempty"`
	Count int               `json:"count"`
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestCollection(t *testing.T) (*Collection[*widget], *FileBackend, *Store) {
	t.Helper()
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	store := New(backend)
	return NewCollection[*widget](store, "widgets"), backend, store
}

// failingBackend wraps a backend and fails every save while failSaves is set.
type failingBackend struct {
	Backend
	mu        sync.Mutex
	failSaves bool
}

func (b *failingBackend) Save(ctx context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSaves {
		return errors.New("disk full")
	}
	return b.Backend.Save(ctx, name, data)
}

func TestCreateAssignsIDAndCreationTime(t *testing.T) {
	ctx := context.Background()
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	widgets := NewCollection[*widget](New(backend, WithClock(fixedClock(now))), "widgets")

	w, err := widgets.Create(ctx, &widget{Name: "runner"})
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID)
	assert.Equal(t, now, w.CreatedAt)
	assert.Nil(t, w.UpdatedAt)

	got, ok := widgets.Get(ctx, w.ID)
	require.True(t, ok)
	assert.Equal(t, "runner", got.Name)
	assert.Equal(t, now, got.CreatedAt)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	widgets, _, _ := newTestCollection(t)

	_, err := widgets.Create(ctx, &widget{Meta: Meta{ID: "w1"}, Name: "a"})
	require.NoError(t, err)
	_, err = widgets.Create(ctx, &widget{Meta: Meta{ID: "w1"}, Name: "b"})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, widgets.Count(ctx))
}

func TestGetMissingSignalsAbsence(t *testing.T) {
	widgets, _, _ := newTestCollection(t)

	got, ok := widgets.Get(context.Background(), "nope")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestMissingFileIsEmptyCollection(t *testing.T) {
	widgets, _, _ := newTestCollection(t)

	recs, err := widgets.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCorruptFileServesEmptyAndRefusesWrites(t *testing.T) {
	ctx := context.Background()
	widgets, backend, _ := newTestCollection(t)
	require.NoError(t, os.WriteFile(backend.Path("widgets"), []byte(`[{"id": "w1",`), 0o644))

	recs, err := widgets.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = widgets.Create(ctx, &widget{Name: "x"})
	assert.ErrorIs(t, err, ErrUnreadable)

	_, err = widgets.Update(ctx, "w1", func(*widget) error { return nil })
	assert.ErrorIs(t, err, ErrUnreadable)
	_, err = widgets.Patch(ctx, "w1", map[string]any{"name": "y"})
	assert.ErrorIs(t, err, ErrUnreadable)
	_, err = widgets.Delete(ctx, "w1")
	assert.ErrorIs(t, err, ErrUnreadable)
	err = widgets.Mutate(ctx, func(all []*widget) ([]*widget, error) { return all, nil })
	assert.ErrorIs(t, err, ErrUnreadable)

	raw, err := os.ReadFile(backend.Path("widgets"))
	require.NoError(t, err)
	assert.Equal(t, `[{"id": "w1",`, string(raw))

	// repaired on disk and reloaded: writes work again
	require.NoError(t, os.WriteFile(backend.Path("widgets"), []byte(`[{"id": "w1", "name": "a", "created_at": "2024-05-01T12:00:00Z"}]`), 0o644))
	widgets.Invalidate()
	_, err = widgets.Patch(ctx, "w1", map[string]any{"name": "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, widgets.Count(ctx))
}

func TestPatchMergesAndKeepsProtectedFields(t *testing.T) {
	ctx := context.Background()
	widgets, _, _ := newTestCollection(t)

	w, err := widgets.Create(ctx, &widget{Name: "trail", Tags: []string{"a"}, Attrs: map[string]string{"k": "v"}, Count: 2})
	require.NoError(t, err)

	patched, err := widgets.Patch(ctx, w.ID, map[string]any{
		"name":       "trail pro",
		"attrs":      map[string]string{"n": "m"},
		"id":         "hijack",
		"created_at": "1999-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, w.ID, patched.ID)
	assert.Equal(t, w.CreatedAt, patched.CreatedAt)
	require.NotNil(t, patched.UpdatedAt)
	assert.Equal(t, "trail pro", patched.Name)
	assert.Equal(t, []string{"a"}, patched.Tags)
	assert.Equal(t, 2, patched.Count)
	assert.Equal(t, map[string]string{"n": "m"}, patched.Attrs, "patch replaces top-level fields")

	stored, ok := widgets.Get(ctx, w.ID)
	require.True(t, ok)
	assert.Equal(t, "trail pro", stored.Name)
}

func TestPatchWithWrongTypeFails(t *testing.T) {
	ctx := context.Background()
	widgets, _, _ := newTestCollection(t)
	w, err := widgets.Create(ctx, &widget{Name: "x"})
	require.NoError(t, err)

	_, err = widgets.Patch(ctx, w.ID, map[string]any{"count": "many"})
	assert.ErrorIs(t, err, ErrInvalidPatch)

	_, err = widgets.Patch(ctx, w.ID, map[string]any{"cuont": 3})
	assert.ErrorIs(t, err, ErrInvalidPatch)
	stored, ok := widgets.Get(ctx, w.ID)
	require.True(t, ok)
	assert.Equal(t, 0, stored.Count)
	assert.Nil(t, stored.UpdatedAt)
}

func TestUpdateAndDeleteMissing(t *testing.T) {
	ctx := context.Background()
	widgets, _, _ := newTestCollection(t)

	_, err := widgets.Update(ctx, "nope", func(w *widget) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = widgets.Patch(ctx, "nope", map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := widgets.Delete(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	widgets, _, _ := newTestCollection(t)
	a, err := widgets.Create(ctx, &widget{Name: "a"})
	require.NoError(t, err)
	_, err = widgets.Create(ctx, &widget{Name: "b"})
	require.NoError(t, err)

	deleted, err := widgets.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	recs, err := widgets.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].Name)
}

func TestReturnedRecordsDoNotAliasCache(t *testing.T) {
	ctx := context.Background()
	widgets, _, _ := newTestCollection(t)
	w, err := widgets.Create(ctx, &widget{Name: "a"})
	require.NoError(t, err)

	got, _ := widgets.Get(ctx, w.ID)
	got.Name = "mutated"

	again, _ := widgets.Get(ctx, w.ID)
	assert.Equal(t, "a", again.Name)
}

func TestWriteFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	fb, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	backend := &failingBackend{Backend: fb}
	store := New(backend)
	widgets := NewCollection[*widget](store, "widgets")

	w, err := widgets.Create(ctx, &widget{Name: "a"})
	require.NoError(t, err)

	backend.failSaves = true
	_, err = widgets.Create(ctx, &widget{Name: "b"})
	require.Error(t, err)
	_, err = widgets.Patch(ctx, w.ID, map[string]any{"name": "changed"})
	require.Error(t, err)
	_, err = widgets.Delete(ctx, w.ID)
	require.Error(t, err)

	recs, err := widgets.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].Name)
	assert.EqualValues(t, 3, store.Stats().FailedWrites)

	widgets.Invalidate()
	recs, err = widgets.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].Name)
}

func TestConcurrentCreatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	widgets, _, _ := newTestCollection(t)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := widgets.Create(ctx, &widget{Name: fmt.Sprintf("w%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 40, widgets.Count(ctx))
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	widgets, _, _ := newTestCollection(t)
	w, err := widgets.Create(ctx, &widget{Name: "counter"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := widgets.Update(ctx, w.ID, func(w *widget) error {
				w.Count++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, ok := widgets.Get(ctx, w.ID)
	require.True(t, ok)
	assert.Equal(t, 25, got.Count)
}

func TestMutateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	widgets, _, _ := newTestCollection(t)
	a, err := widgets.Create(ctx, &widget{Name: "a", Count: 1})
	require.NoError(t, err)

	err = widgets.Mutate(ctx, func(recs []*widget) ([]*widget, error) {
		recs[0].Count = 100
		return nil, errors.New("abort")
	})
	require.Error(t, err)
	got, _ := widgets.Get(ctx, a.ID)
	assert.Equal(t, 1, got.Count)

	err = widgets.Mutate(ctx, func(recs []*widget) ([]*widget, error) {
		recs[0].Count = 2
		return append(recs, &widget{Name: "b"}), nil
	})
	require.NoError(t, err)

	recs, err := widgets.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, recs[0].Count)
	assert.NotNil(t, recs[0].UpdatedAt)
	assert.NotEmpty(t, recs[1].ID)
	assert.False(t, recs[1].CreatedAt.IsZero())
	assert.Nil(t, recs[1].UpdatedAt)
}

func TestDataSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	w, err := NewCollection[*widget](New(backend), "widgets").Create(ctx, &widget{Name: "persisted"})
	require.NoError(t, err)

	backend2, err := NewFileBackend(dir)
	require.NoError(t, err)
	got, ok := NewCollection[*widget](New(backend2), "widgets").Get(ctx, w.ID)
	require.True(t, ok)
	assert.Equal(t, "persisted", got.Name)

	leftovers, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestStoreInvalidateRunsHooks(t *testing.T) {
	_, _, store := newTestCollection(t)
	var got []string
	store.OnInvalidate(func(name string) { got = append(got, name) })

	store.Invalidate("widgets")
	store.Invalidate("unknown")

	assert.Equal(t, []string{"widgets"}, got)
	assert.Equal(t, []string{"widgets"}, store.Names())
}

func TestNewCollectionRejectsBadNames(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	store := New(backend)

	assert.Panics(t, func() { NewCollection[*widget](store, "../etc") })
	NewCollection[*widget](store, "ok")
	assert.Panics(t, func() { NewCollection[*widget](store, "ok") })
}

func TestStoreReset(t *testing.T) {
	ctx := context.Background()
	widgets, _, store := newTestCollection(t)
	_, err := widgets.Create(ctx, &widget{Name: "a"})
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))
	assert.Equal(t, 0, widgets.Count(ctx))
	assert.ErrorIs(t, store.Reset(ctx, "unknown"), ErrInvalidName)
}
