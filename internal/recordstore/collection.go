package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Collection is one named array of records of type T, where T is a pointer
// to a struct embedding Meta.
//
// The raw document is cached after the first load and replaced only after a
// successful save. Every call decodes a fresh copy, so callers may mutate
// what they get back without touching the cache.
type Collection[T Entity] struct {
	name  string
	store *Store

	mu     sync.Mutex
	raw    []byte
	loaded bool
}

// NewCollection registers a collection on s. Registering the same name twice
// panics.
func NewCollection[T Entity](s *Store, name string) *Collection[T] {
	if err := checkName(name); err != nil {
		panic(fmt.Sprintf("recordstore: %v: %q", err, name))
	}
	c := &Collection[T]{name: name, store: s}
	s.register(name, c)
	return c
}

func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raw = nil
	c.loaded = false
}

// read returns the current records. Caller holds c.mu.
func (c *Collection[T]) read(ctx context.Context) ([]T, error) {
	if !c.loaded {
		data, err := c.store.backend.Load(ctx, c.name)
		c.store.loads.Add(1)
		switch {
		case errors.Is(err, ErrNoDocument):
			data = nil
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, c.name, err)
		}
		c.raw = data
		c.loaded = true
	}

	recs, err := decode[T](c.raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, c.name, err)
	}
	return recs, nil
}

// readOrEmpty is the read path for queries: an unreadable document degrades
// to an empty collection.
func (c *Collection[T]) readOrEmpty(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs, err := c.read(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		c.store.logger.Warnw("collection unreadable, serving it as empty", "collection", c.name, "error", err)
		return []T{}, nil
	}
	return recs, nil
}

// commit saves recs and swaps the cache. Caller holds c.mu.
func (c *Collection[T]) commit(ctx context.Context, recs []T) error {
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	if err := c.store.backend.Save(ctx, c.name, data); err != nil {
		c.store.failedWrites.Add(1)
		return fmt.Errorf("save %s: %w", c.name, err)
	}
	c.store.writes.Add(1)
	c.raw = data
	c.loaded = true
	return nil
}

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readOrEmpty(ctx)
}

// Get reports absence with ok == false; it never fails on a missing record.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, bool) {
	return c.Find(ctx, func(rec T) bool { return rec.RecordMeta().ID == id })
}

// Find returns the first record matching pred.
func (c *Collection[T]) Find(ctx context.Context, pred func(T) bool) (T, bool) {
	var zero T
	recs, err := c.List(ctx)
	if err != nil {
		return zero, false
	}
	for _, rec := range recs {
		if pred(rec) {
			return rec, true
		}
	}
	return zero, false
}

func (c *Collection[T]) Count(ctx context.Context) int {
	recs, _ := c.List(ctx)
	return len(recs)
}

// Create assigns an id (when empty) and the creation timestamp, then appends
// rec to the collection.
func (c *Collection[T]) Create(ctx context.Context, rec T) (T, error) {
	var zero T
	if isNil(rec) {
		return zero, errors.New("recordstore: nil record")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	recs, err := c.read(ctx)
	if err != nil {
		return zero, err
	}

	meta := rec.RecordMeta()
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	for _, existing := range recs {
		if existing.RecordMeta().ID == meta.ID {
			return zero, ErrDuplicateID
		}
	}
	meta.CreatedAt = c.store.now()
	meta.UpdatedAt = nil

	if err := c.commit(ctx, append(recs, rec)); err != nil {
		return zero, err
	}
	return rec, nil
}

// Update runs fn on the stored record with the given id and saves the
// result. fn cannot change the id or the creation timestamp.
func (c *Collection[T]) Update(ctx context.Context, id string, fn func(T) error) (T, error) {
	return c.replace(ctx, id, func(cur T) (T, error) {
		if err := fn(cur); err != nil {
			var zero T
			return zero, err
		}
		return cur, nil
	})
}

// Patch shallow-merges patch over the stored record: every top-level key in
// patch replaces the record's field of the same JSON name. id, created_at and
// updated_at are ignored.
func (c *Collection[T]) Patch(ctx context.Context, id string, patch map[string]any) (T, error) {
	return c.replace(ctx, id, func(cur T) (T, error) {
		return Merge(cur, patch)
	})
}

func (c *Collection[T]) replace(ctx context.Context, id string, fn func(T) (T, error)) (T, error) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	recs, err := c.read(ctx)
	if err != nil {
		return zero, err
	}

	idx := indexOf(recs, id)
	if idx < 0 {
		return zero, ErrNotFound
	}
	cur := recs[idx]
	meta := *cur.RecordMeta()

	next, err := fn(cur)
	if err != nil {
		return zero, err
	}
	now := c.store.now()
	nm := next.RecordMeta()
	nm.ID = meta.ID
	nm.CreatedAt = meta.CreatedAt
	nm.UpdatedAt = &now

	recs[idx] = next
	if err := c.commit(ctx, recs); err != nil {
		return zero, err
	}
	return next, nil
}

// Delete reports whether a record was removed.
func (c *Collection[T]) Delete(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	recs, err := c.read(ctx)
	if err != nil {
		return false, err
	}
	idx := indexOf(recs, id)
	if idx < 0 {
		return false, nil
	}
	recs = append(recs[:idx], recs[idx+1:]...)
	if err := c.commit(ctx, recs); err != nil {
		return false, err
	}
	return true, nil
}

// Mutate runs fn over the whole collection under the collection lock and
// saves what it returns. Nothing is written when fn fails. New records get
// ids and creation timestamps; records whose content changed get updated_at.
func (c *Collection[T]) Mutate(ctx context.Context, fn func([]T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	recs, err := c.read(ctx)
	if err != nil {
		return err
	}
	before := make(map[string][]byte, len(recs))
	for _, rec := range recs {
		b, _ := json.Marshal(rec)
		before[rec.RecordMeta().ID] = b
	}

	next, err := fn(recs)
	if err != nil {
		return err
	}

	now := c.store.now()
	seen := make(map[string]bool, len(next))
	for _, rec := range next {
		m := rec.RecordMeta()
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if seen[m.ID] {
			return ErrDuplicateID
		}
		seen[m.ID] = true

		prev, existed := before[m.ID]
		switch {
		case !existed:
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
		default:
			if b, _ := json.Marshal(rec); !bytes.Equal(b, prev) {
				m.UpdatedAt = &now
			}
		}
	}
	return c.commit(ctx, next)
}

// Reset replaces the collection with an empty array.
func (c *Collection[T]) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit(ctx, []T{})
}

func indexOf[T Entity](recs []T, id string) int {
	if id == "" {
		return -1
	}
	for i, rec := range recs {
		if rec.RecordMeta().ID == id {
			return i
		}
	}
	return -1
}

func decode[T Entity](data []byte) ([]T, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []T{}, nil
	}
	var recs []T
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, rec := range recs {
		if !isNil(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Merge returns a copy of cur with every top-level key of patch replacing
// the field of the same JSON name. Meta fields are never taken from patch;
// a key that names no field fails with ErrInvalidPatch.
func Merge[T Entity](cur T, patch map[string]any) (T, error) {
	var zero T

	b, err := json.Marshal(cur)
	if err != nil {
		return zero, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return zero, err
	}
	for k, v := range patch {
		if protectedFields[k] {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return zero, fmt.Errorf("%w: field %q: %v", ErrInvalidPatch, k, err)
		}
		fields[k] = raw
	}

	b, err = json.Marshal(fields)
	if err != nil {
		return zero, err
	}
	var next T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return next, nil
}

func isNil[T any](v T) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
