package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"classroom-roster/internal/domain/roster"
	"classroom-roster/internal/infrastructure/metrics"
	interfaces "classroom-roster/internal/interfaces/infrastructure"
	serviceInterfaces "classroom-roster/internal/interfaces/service"
	"classroom-roster/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var _ serviceInterfaces.RosterStore = (*DataStore)(nil)

type Backend = serviceInterfaces.Backend
type BackendStatus = serviceInterfaces.BackendStatus

const (
	BackendEngine   = serviceInterfaces.BackendEngine
	BackendSnapshot = serviceInterfaces.BackendSnapshot
)

type identifiable interface {
	GetID() uuid.UUID
}

// collection is the cached working set of one entity type. seq records
// insertion order so listings are stable.
type collection[T identifiable] struct {
	items map[uuid.UUID]T
	seq   map[uuid.UUID]uint64
	next  uint64
}

func newCollection[T identifiable]() *collection[T] {
	return &collection[T]{
		items: make(map[uuid.UUID]T),
		seq:   make(map[uuid.UUID]uint64),
	}
}

func (c *collection[T]) get(id uuid.UUID) (T, bool) {
	v, ok := c.items[id]
	return v, ok
}

func (c *collection[T]) put(v T) {
	id := v.GetID()
	if _, exists := c.seq[id]; !exists {
		c.seq[id] = c.next
		c.next++
	}
	c.items[id] = v
}

func (c *collection[T]) remove(id uuid.UUID) {
	delete(c.items, id)
	delete(c.seq, id)
}

func (c *collection[T]) filter(keep func(T) bool) []T {
	out := make([]T, 0)
	for _, v := range c.items {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return c.seq[out[i].GetID()] < c.seq[out[j].GetID()]
	})
	return out
}

func (c *collection[T]) clone() *collection[T] {
	cp := &collection[T]{
		items: make(map[uuid.UUID]T, len(c.items)),
		seq:   make(map[uuid.UUID]uint64, len(c.seq)),
		next:  c.next,
	}
	for id, v := range c.items {
		cp.items[id] = v
		cp.seq[id] = c.seq[id]
	}
	return cp
}

type state struct {
	classes   *collection[roster.Class]
	students  *collection[roster.Student]
	positions *collection[roster.SeatingPosition]
	ratings   *collection[roster.Rating]
}

func newState() *state {
	return &state{
		classes:   newCollection[roster.Class](),
		students:  newCollection[roster.Student](),
		positions: newCollection[roster.SeatingPosition](),
		ratings:   newCollection[roster.Rating](),
	}
}

func stateFrom(snap *roster.Snapshot) *state {
	st := newState()
	for _, c := range snap.Classes {
		st.classes.put(c)
	}
	for _, student := range snap.Students {
		st.students.put(student)
	}
	for _, p := range snap.Positions {
		st.positions.put(p)
	}
	for _, r := range snap.Ratings {
		st.ratings.put(r)
	}
	return st
}

func (s *state) clone() *state {
	return &state{
		classes:   s.classes.clone(),
		students:  s.students.clone(),
		positions: s.positions.clone(),
		ratings:   s.ratings.clone(),
	}
}

func (s *state) snapshot(now time.Time) *roster.Snapshot {
	return &roster.Snapshot{
		Classes:   s.classes.filter(nil),
		Students:  s.students.filter(nil),
		Positions: s.positions.filter(nil),
		Ratings:   s.ratings.filter(nil),
		SavedAt:   now,
	}
}

// change is one entity mutation: how to persist it and how to apply it
// to the cache.
type change struct {
	entity  roster.EntityKind
	kind    roster.ChangeKind
	id      uuid.UUID
	name    string
	persist func(ctx context.Context, engine interfaces.Engine) error
	apply   func(st *state)
}

// DataStore is the in-memory working set of classes, students, seating
// positions and ratings. Reads are served from memory; writes go to the
// engine first and to the snapshot store when the engine fails.
//
// One RWMutex guards all collections. Every mutation holds it from
// validation until the cache is updated, so writes to the same record
// are serialized.
type DataStore struct {
	mu    sync.RWMutex
	state *state

	engine      interfaces.Engine
	snapshots   interfaces.SnapshotStore
	notifier    interfaces.Notifier
	metrics     *metrics.Recorder
	maxStudents int
	status      BackendStatus

	now func() time.Time
}

type noopNotifier struct{}

func (noopNotifier) Publish(roster.ChangeEvent) {}

// NewDataStore creates an empty store. Call LoadAll to populate it.
// notifier and recorder may be nil; maxStudents <= 0 uses the default of 40.
func NewDataStore(
	engine interfaces.Engine,
	snapshots interfaces.SnapshotStore,
	notifier interfaces.Notifier,
	recorder *metrics.Recorder,
	maxStudents int,
) *DataStore {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if maxStudents <= 0 {
		maxStudents = roster.MaxStudentsPerClass
	}

	return &DataStore{
		state:       newState(),
		engine:      engine,
		snapshots:   snapshots,
		notifier:    notifier,
		metrics:     recorder,
		maxStudents: maxStudents,
		status:      BackendStatus{Active: BackendEngine},
		now:         time.Now,
	}
}

// MaxStudentsPerClass is the capacity the store enforces.
func (s *DataStore) MaxStudentsPerClass() int {
	return s.maxStudents
}

// Status reports which backend is currently capturing writes.
func (s *DataStore) Status() BackendStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Snapshot returns a copy of the whole working set.
func (s *DataStore) Snapshot() *roster.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.snapshot(s.now())
}

// LoadAll replaces the working set with the engine's contents. A stored
// fallback snapshot holds writes the engine missed, so it wins over the
// engine: it is replayed into the engine and cleared. When the engine
// cannot be read or the replay fails, the store runs from the snapshot and
// starts degraded.
func (s *DataStore) LoadAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.loadFromEngine(ctx)
	if err == nil {
		pending, snapErr := s.pendingSnapshot(ctx)
		if snapErr != nil {
			logger.Warn("Could not read fallback snapshot, using engine contents: %v", snapErr)
		}
		if pending == nil {
			s.state = loaded
			s.markHealthy()
			logger.Info("Loaded %d classes, %d students, %d positions, %d ratings from engine",
				len(loaded.classes.items), len(loaded.students.items), len(loaded.positions.items), len(loaded.ratings.items))
			return nil
		}

		s.state = stateFrom(pending)
		if err := s.syncEngine(ctx, s.state); err != nil {
			logger.Warn("Replaying fallback snapshot into engine failed: %v", err)
			s.markDegraded(err)
			return nil
		}
		logger.Info("Replayed fallback snapshot saved at %s into engine", pending.SavedAt.Format(time.RFC3339))
		s.resynced(ctx)
		return nil
	}

	logger.Warn("Failed to load from engine, falling back to snapshot: %v", err)
	if s.snapshots == nil {
		return &roster.PersistenceError{Op: "load", Entity: roster.EntityBackend, Err: err}
	}

	snap, snapErr := s.snapshots.LoadSnapshot(ctx)
	if snapErr != nil {
		return &roster.PersistenceError{Op: "load", Entity: roster.EntityBackend, Err: errors.Join(err, snapErr)}
	}

	if snap == nil {
		snap = &roster.Snapshot{}
	}
	s.state = stateFrom(snap)
	s.markDegraded(err)
	return nil
}

func (s *DataStore) pendingSnapshot(ctx context.Context) (*roster.Snapshot, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	return s.snapshots.LoadSnapshot(ctx)
}

func (s *DataStore) loadFromEngine(ctx context.Context) (*state, error) {
	classes, err := s.engine.Classes().FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	students, err := s.engine.Students().FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := s.engine.Positions().FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	ratings, err := s.engine.Ratings().FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	return stateFrom(&roster.Snapshot{
		Classes:   classes,
		Students:  students,
		Positions: positions,
		Ratings:   ratings,
	}), nil
}

// commit persists and applies changes. Callers hold s.mu. More than one
// change runs in a single engine transaction. On engine failure the
// changes are applied to a copy of the cache, the copy is written to the
// snapshot store, and only then does it replace the cache. A
// PersistenceError means neither backend took the write and the cache is
// unchanged.
//
// While degraded the engine is missing earlier writes, so instead of the
// single changes the whole resulting working set is written to it.
func (s *DataStore) commit(ctx context.Context, op string, changes ...change) error {
	if len(changes) == 0 {
		return nil
	}

	if s.status.Degraded {
		draft := s.draft(changes)
		if err := s.syncEngine(ctx, draft); err != nil {
			return s.fallback(ctx, op, changes, draft, err)
		}
		s.state = draft
		s.recordWrites(changes, BackendEngine)
		s.resynced(ctx)
		s.publish(changes)
		return nil
	}

	var err error
	if len(changes) == 1 {
		err = changes[0].persist(ctx, s.engine)
	} else {
		err = s.engine.Transaction(ctx, func(tx interfaces.Engine) error {
			for _, c := range changes {
				if err := c.persist(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err != nil {
		return s.fallback(ctx, op, changes, s.draft(changes), err)
	}

	for _, c := range changes {
		c.apply(s.state)
	}
	s.recordWrites(changes, BackendEngine)
	s.publish(changes)
	return nil
}

func (s *DataStore) draft(changes []change) *state {
	draft := s.state.clone()
	for _, c := range changes {
		c.apply(draft)
	}
	return draft
}

func (s *DataStore) recordWrites(changes []change, backend Backend) {
	for _, c := range changes {
		s.metrics.Write(string(c.entity), string(backend))
	}
}

// fallback writes draft to the snapshot store after the engine rejected
// changes, and makes it the working set when that succeeds.
func (s *DataStore) fallback(ctx context.Context, op string, changes []change, draft *state, err error) error {
	entity := changes[0].entity
	logger.WithFields(logrus.Fields{
		"op":      op,
		"entity":  entity,
		"id":      changes[0].id,
		"changes": len(changes),
	}).Warnf("Engine write failed, falling back to snapshot: %v", err)

	if s.snapshots == nil {
		return &roster.PersistenceError{Op: op, Entity: entity, Err: err}
	}

	if snapErr := s.snapshots.SaveSnapshot(ctx, draft.snapshot(s.now())); snapErr != nil {
		logger.Error("Snapshot fallback failed for %s %s: %v", op, entity, snapErr)
		return &roster.PersistenceError{Op: op, Entity: entity, Err: errors.Join(err, snapErr)}
	}

	s.state = draft
	s.recordWrites(changes, BackendSnapshot)
	s.metrics.Fallback(string(entity), op)
	s.markDegraded(err)
	s.publish(changes)
	return nil
}

// syncEngine makes the engine hold exactly st in one transaction. Rows
// missing from st are deleted children first, then every entity is
// saved parents first.
func (s *DataStore) syncEngine(ctx context.Context, st *state) error {
	return s.engine.Transaction(ctx, func(tx interfaces.Engine) error {
		if err := pruneTable(ctx, tx.Ratings(), st.ratings); err != nil {
			return err
		}
		if err := pruneTable(ctx, tx.Positions(), st.positions); err != nil {
			return err
		}
		if err := pruneTable(ctx, tx.Students(), st.students); err != nil {
			return err
		}
		if err := pruneTable(ctx, tx.Classes(), st.classes); err != nil {
			return err
		}

		if err := saveTable(ctx, tx.Classes(), st.classes); err != nil {
			return err
		}
		if err := saveTable(ctx, tx.Students(), st.students); err != nil {
			return err
		}
		if err := saveTable(ctx, tx.Positions(), st.positions); err != nil {
			return err
		}
		return saveTable(ctx, tx.Ratings(), st.ratings)
	})
}

func pruneTable[T identifiable](ctx context.Context, table interfaces.Table[T], keep *collection[T]) error {
	rows, err := table.FetchAll(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if _, ok := keep.get(row.GetID()); ok {
			continue
		}
		if err := table.Delete(ctx, row.GetID()); err != nil {
			return err
		}
	}
	return nil
}

func saveTable[T identifiable](ctx context.Context, table interfaces.Table[T], rows *collection[T]) error {
	for _, row := range rows.filter(nil) {
		if err := table.Save(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// resynced runs after the engine caught up with the working set. The
// snapshot is dropped so a restart does not replay it over newer engine
// writes. If it cannot be dropped it is overwritten with the synced state
// and the store stays degraded until a later commit clears it.
func (s *DataStore) resynced(ctx context.Context) {
	if s.snapshots != nil {
		if err := s.snapshots.Clear(ctx); err != nil {
			logger.Error("Engine is in sync but the fallback snapshot could not be cleared: %v", err)
			if saveErr := s.snapshots.SaveSnapshot(ctx, s.state.snapshot(s.now())); saveErr != nil {
				logger.Error("Fallback snapshot is stale and could not be refreshed: %v", saveErr)
			}
			s.status.LastError = err.Error()
			return
		}
	}
	s.markHealthy()
}

func (s *DataStore) publish(changes []change) {
	at := s.now()
	for _, c := range changes {
		s.notifier.Publish(roster.ChangeEvent{
			Entity:      c.entity,
			Kind:        c.kind,
			ID:          c.id,
			DisplayName: c.name,
			Success:     true,
			At:          at,
		})
	}
}

func (s *DataStore) markHealthy() {
	if !s.status.Degraded {
		return
	}
	s.status.Degraded = false
	s.status.Active = BackendEngine
	s.metrics.SetDegraded(false)
	logger.Info("Engine caught up with the fallback snapshot, store is no longer degraded")
	s.notifier.Publish(roster.ChangeEvent{
		Entity:  roster.EntityBackend,
		Kind:    roster.ChangeRestored,
		Success: true,
		At:      s.now(),
	})
}

func (s *DataStore) markDegraded(err error) {
	at := s.now()
	s.status.FallbackCount++
	s.status.LastError = err.Error()
	s.status.LastFallbackAt = &at
	if s.status.Degraded {
		return
	}
	s.status.Degraded = true
	s.status.Active = BackendSnapshot
	s.metrics.SetDegraded(true)
	logger.Warn("Store degraded, writes are only captured by the snapshot store: %v", err)
	s.notifier.Publish(roster.ChangeEvent{
		Entity:  roster.EntityBackend,
		Kind:    roster.ChangeDegraded,
		Success: true,
		At:      at,
	})
}

// DisplayName returns the label of an entity for notifications, and false
// when the id is unknown.
func (s *DataStore) DisplayName(entity roster.EntityKind, id uuid.UUID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch entity {
	case roster.EntityClass:
		if c, ok := s.state.classes.get(id); ok {
			return c.DisplayName(), true
		}
	case roster.EntityStudent:
		if st, ok := s.state.students.get(id); ok {
			return st.FullName(), true
		}
	case roster.EntitySeating:
		if p, ok := s.state.positions.get(id); ok {
			if st, ok := s.state.students.get(p.StudentID); ok {
				return st.FullName(), true
			}
			return p.ID.String(), true
		}
	case roster.EntityRating:
		if r, ok := s.state.ratings.get(id); ok {
			name := r.Date.Format("2006-01-02")
			if st, ok := s.state.students.get(r.StudentID); ok {
				name = st.FullName() + " " + name
			}
			return name, true
		}
	}
	return "", false
}
