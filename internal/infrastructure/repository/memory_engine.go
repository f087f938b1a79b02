package repository

import (
	"context"
	"fmt"
	"sync"

	"classroom-roster/internal/domain/roster"
	interfaces "classroom-roster/internal/interfaces/infrastructure"

	"github.com/google/uuid"
)

// Table names and operations understood by the fault injection helpers.
const (
	TableClasses   = "classes"
	TableStudents  = "students"
	TablePositions = "positions"
	TableRatings   = "ratings"
	TableAny       = "*"

	OpFetch       = "fetch"
	OpSave        = "save"
	OpDelete      = "delete"
	OpTransaction = "transaction"
	OpAny         = "*"
)

var _ interfaces.Engine = (*MemoryEngine)(nil)

type identifiable interface {
	GetID() uuid.UUID
}

type memRows[T identifiable] struct {
	items map[uuid.UUID]T
	order []uuid.UUID
}

func newMemRows[T identifiable]() *memRows[T] {
	return &memRows[T]{items: make(map[uuid.UUID]T)}
}

func (r *memRows[T]) put(v T) {
	id := v.GetID()
	if _, exists := r.items[id]; !exists {
		r.order = append(r.order, id)
	}
	r.items[id] = v
}

func (r *memRows[T]) remove(id uuid.UUID) {
	if _, exists := r.items[id]; !exists {
		return
	}
	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *memRows[T]) list() []T {
	out := make([]T, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

func (r *memRows[T]) clone() *memRows[T] {
	c := newMemRows[T]()
	for _, id := range r.order {
		c.put(r.items[id])
	}
	return c
}

type memState struct {
	classes   *memRows[roster.Class]
	students  *memRows[roster.Student]
	positions *memRows[roster.SeatingPosition]
	ratings   *memRows[roster.Rating]
}

func newMemState() *memState {
	return &memState{
		classes:   newMemRows[roster.Class](),
		students:  newMemRows[roster.Student](),
		positions: newMemRows[roster.SeatingPosition](),
		ratings:   newMemRows[roster.Rating](),
	}
}

func (s *memState) clone() *memState {
	return &memState{
		classes:   s.classes.clone(),
		students:  s.students.clone(),
		positions: s.positions.clone(),
		ratings:   s.ratings.clone(),
	}
}

// faults is shared between an engine and its transactions.
type faults struct {
	mu     sync.Mutex
	errors map[string]error
	calls  map[string]int
}

func (f *faults) check(table, op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[table+"."+op]++
	for _, key := range []string{table + "." + op, table + "." + OpAny, TableAny + "." + op, TableAny + "." + OpAny} {
		if err, ok := f.errors[key]; ok {
			return err
		}
	}
	return nil
}

// MemoryEngine is an in-memory persistent engine for tests and demos.
// Every call can be made to fail with FailOn.
type MemoryEngine struct {
	mu     sync.RWMutex
	txMu   *sync.Mutex
	state  *memState
	faults *faults
}

// NewMemoryEngine creates an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		txMu:  &sync.Mutex{},
		state: newMemState(),
		faults: &faults{
			errors: make(map[string]error),
			calls:  make(map[string]int),
		},
	}
}

// FailOn makes op on table return err until Reset. TableAny and OpAny
// act as wildcards.
func (m *MemoryEngine) FailOn(table, op string, err error) {
	m.faults.mu.Lock()
	defer m.faults.mu.Unlock()
	m.faults.errors[table+"."+op] = err
}

// FailAll makes every engine call return err.
func (m *MemoryEngine) FailAll(err error) {
	m.FailOn(TableAny, OpAny, err)
}

// Reset clears injected failures and call counters.
func (m *MemoryEngine) Reset() {
	m.faults.mu.Lock()
	defer m.faults.mu.Unlock()
	m.faults.errors = make(map[string]error)
	m.faults.calls = make(map[string]int)
}

// Calls returns how often op was attempted on table, failed attempts included.
func (m *MemoryEngine) Calls(table, op string) int {
	m.faults.mu.Lock()
	defer m.faults.mu.Unlock()
	return m.faults.calls[table+"."+op]
}

// Seed stores the snapshot contents without going through fault checks.
func (m *MemoryEngine) Seed(snapshot roster.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range snapshot.Classes {
		m.state.classes.put(c)
	}
	for _, s := range snapshot.Students {
		m.state.students.put(s)
	}
	for _, p := range snapshot.Positions {
		m.state.positions.put(p)
	}
	for _, r := range snapshot.Ratings {
		m.state.ratings.put(r)
	}
}

// Dump returns the durable state.
func (m *MemoryEngine) Dump() roster.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return roster.Snapshot{
		Classes:   m.state.classes.list(),
		Students:  m.state.students.list(),
		Positions: m.state.positions.list(),
		Ratings:   m.state.ratings.list(),
	}
}

func (m *MemoryEngine) Classes() interfaces.Table[roster.Class] {
	return &memTable[roster.Class]{engine: m, name: TableClasses, rows: func(s *memState) *memRows[roster.Class] { return s.classes }}
}

func (m *MemoryEngine) Students() interfaces.Table[roster.Student] {
	return &memTable[roster.Student]{engine: m, name: TableStudents, rows: func(s *memState) *memRows[roster.Student] { return s.students }}
}

func (m *MemoryEngine) Positions() interfaces.Table[roster.SeatingPosition] {
	return &memTable[roster.SeatingPosition]{engine: m, name: TablePositions, rows: func(s *memState) *memRows[roster.SeatingPosition] { return s.positions }}
}

func (m *MemoryEngine) Ratings() interfaces.Table[roster.Rating] {
	return &memTable[roster.Rating]{engine: m, name: TableRatings, rows: func(s *memState) *memRows[roster.Rating] { return s.ratings }}
}

// Transaction runs fn against a copy of the state and publishes the copy
// only when fn succeeds.
func (m *MemoryEngine) Transaction(ctx context.Context, fn func(tx interfaces.Engine) error) error {
	if err := m.faults.check(TableAny, OpTransaction); err != nil {
		return err
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	draft := m.state.clone()
	m.mu.RUnlock()

	tx := &MemoryEngine{txMu: &sync.Mutex{}, state: draft, faults: m.faults}
	if err := fn(tx); err != nil {
		return fmt.Errorf("transaction rolled back: %w", err)
	}

	m.mu.Lock()
	m.state = draft
	m.mu.Unlock()
	return nil
}

func (m *MemoryEngine) Health(ctx context.Context) error {
	return m.faults.check(TableAny, "health")
}

type memTable[T identifiable] struct {
	engine *MemoryEngine
	name   string
	rows   func(*memState) *memRows[T]
}

func (t *memTable[T]) FetchAll(ctx context.Context) ([]T, error) {
	if err := t.engine.faults.check(t.name, OpFetch); err != nil {
		return nil, err
	}
	t.engine.mu.RLock()
	defer t.engine.mu.RUnlock()
	return t.rows(t.engine.state).list(), nil
}

func (t *memTable[T]) Save(ctx context.Context, entity T) error {
	if err := t.engine.faults.check(t.name, OpSave); err != nil {
		return err
	}
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()
	t.rows(t.engine.state).put(entity)
	return nil
}

func (t *memTable[T]) Delete(ctx context.Context, id uuid.UUID) error {
	if err := t.engine.faults.check(t.name, OpDelete); err != nil {
		return err
	}
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()
	t.rows(t.engine.state).remove(id)
	return nil
}
