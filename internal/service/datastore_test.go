package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"classroom-roster/internal/domain/roster"
	"classroom-roster/internal/infrastructure/cache"
	"classroom-roster/internal/infrastructure/repository"

	"github.com/google/uuid"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []roster.ChangeEvent
}

func (n *recordingNotifier) Publish(event roster.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) count(entity roster.EntityKind, kind roster.ChangeKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Entity == entity && e.Kind == kind {
			c++
		}
	}
	return c
}

type fixture struct {
	store    *DataStore
	engine   *repository.MemoryEngine
	snaps    *cache.MemorySnapshotStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		engine:   repository.NewMemoryEngine(),
		snaps:    cache.NewMemorySnapshotStore(),
		notifier: &recordingNotifier{},
	}
	f.store = NewDataStore(f.engine, f.snaps, f.notifier, nil, 0)
	if err := f.store.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	return f
}

func (f *fixture) addClass(t *testing.T, name string, row, col int) roster.Class {
	t.Helper()
	c, err := f.store.AddClass(context.Background(), roster.NewClass(name, row, col))
	if err != nil {
		t.Fatalf("AddClass(%q) error = %v", name, err)
	}
	return c
}

func (f *fixture) addStudent(t *testing.T, classID uuid.UUID, first, last string) roster.Student {
	t.Helper()
	st, err := f.store.AddStudent(context.Background(), roster.NewStudent(classID, first, last))
	if err != nil {
		t.Fatalf("AddStudent(%q %q) error = %v", first, last, err)
	}
	return st
}

func TestAddClassInvariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.addClass(t, "5a", 1, 1)

	if f.store.IsClassNameUnique("5A", uuid.Nil) {
		t.Error("IsClassNameUnique should compare case-insensitively")
	}
	if !f.store.IsClassNameUnique("5A", c.ID) {
		t.Error("a class should not clash with its own name")
	}
	if f.store.IsPositionAvailable(1, 1, uuid.Nil) {
		t.Error("cell (1,1) should be occupied")
	}
	if !f.store.IsPositionAvailable(1, 1, c.ID) {
		t.Error("a class should not block its own cell")
	}

	_, err := f.store.AddClass(ctx, roster.NewClass("5A", 2, 2))
	if !errors.Is(err, roster.ErrValidation) {
		t.Errorf("duplicate name error = %v, want validation error", err)
	}
	_, err = f.store.AddClass(ctx, roster.NewClass("6b", 1, 1))
	if !errors.Is(err, roster.ErrValidation) {
		t.Errorf("occupied cell error = %v, want validation error", err)
	}
	_, err = f.store.AddClass(ctx, roster.NewClass("6b", 13, 1))
	if !errors.Is(err, roster.ErrValidation) {
		t.Errorf("row 13 error = %v, want validation error", err)
	}

	if err := f.store.ArchiveClass(ctx, c.ID); err != nil {
		t.Fatalf("ArchiveClass() error = %v", err)
	}
	if !f.store.IsPositionAvailable(1, 1, uuid.Nil) {
		t.Error("archived class should free its cell")
	}
	if _, err := f.store.AddClass(ctx, roster.NewClass("5a", 1, 1)); err != nil {
		t.Errorf("AddClass after archive error = %v", err)
	}
	if got := len(f.store.Classes()); got != 2 {
		t.Errorf("len(Classes()) = %d, want 2", got)
	}
	if got := len(f.store.ActiveClasses()); got != 1 {
		t.Errorf("len(ActiveClasses()) = %d, want 1", got)
	}
}

func TestActiveClassesOrderedByCell(t *testing.T) {
	f := newFixture(t)
	f.addClass(t, "c", 3, 1)
	f.addClass(t, "a", 1, 2)
	f.addClass(t, "b", 1, 1)

	var names []string
	for _, c := range f.store.ActiveClasses() {
		names = append(names, c.Name)
	}
	if fmt.Sprint(names) != "[b a c]" {
		t.Errorf("ActiveClasses() = %v, want [b a c]", names)
	}
	if c, ok := f.store.ClassAt(1, 2); !ok || c.Name != "a" {
		t.Errorf("ClassAt(1,2) = %v, %v", c.Name, ok)
	}
}

func TestAddStudentNamesakeIsNoop(t *testing.T) {
	f := newFixture(t)
	c := f.addClass(t, "5a", 1, 1)
	first := f.addStudent(t, c.ID, "Anna", "Adler")

	if f.store.IsStudentNameUnique(c.ID, " anna ", "ADLER", uuid.Nil) {
		t.Error("IsStudentNameUnique should be false after add")
	}
	saves := f.engine.Calls(repository.TableStudents, repository.OpSave)

	again, err := f.store.AddStudent(context.Background(), roster.NewStudent(c.ID, "anna", "adler "))
	if err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("AddStudent() returned %s, want existing %s", again.ID, first.ID)
	}
	if got := len(f.store.StudentsForClass(c.ID, true)); got != 1 {
		t.Errorf("students = %d, want 1", got)
	}
	if got := f.engine.Calls(repository.TableStudents, repository.OpSave); got != saves {
		t.Errorf("engine saves = %d, want %d", got, saves)
	}
}

func TestUpdateStudentRejectsNamesake(t *testing.T) {
	f := newFixture(t)
	c := f.addClass(t, "5a", 1, 1)
	f.addStudent(t, c.ID, "Anna", "Adler")
	bert := f.addStudent(t, c.ID, "Bert", "Bauer")

	bert.FirstName, bert.LastName = "Anna", "Adler"
	if _, err := f.store.UpdateStudent(context.Background(), bert); !errors.Is(err, roster.ErrValidation) {
		t.Errorf("UpdateStudent() error = %v, want validation error", err)
	}
}

func TestStudentCapacity(t *testing.T) {
	f := newFixture(t)
	c := f.addClass(t, "5a", 1, 1)
	for i := 0; i < roster.MaxStudentsPerClass; i++ {
		f.addStudent(t, c.ID, "Kid", fmt.Sprintf("No%d", i))
	}
	if got := f.store.StudentCountForClass(c.ID); got != roster.MaxStudentsPerClass {
		t.Fatalf("StudentCountForClass() = %d", got)
	}
	saves := f.engine.Calls(repository.TableStudents, repository.OpSave)

	_, err := f.store.AddStudent(context.Background(), roster.NewStudent(c.ID, "One", "TooMany"))
	if !errors.Is(err, roster.ErrValidation) {
		t.Fatalf("41st student error = %v, want validation error", err)
	}
	if got := f.engine.Calls(repository.TableStudents, repository.OpSave); got != saves {
		t.Errorf("engine saves = %d, want %d: nothing may be written", got, saves)
	}
}

func TestDeleteClassCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.addClass(t, "5a", 1, 1)
	other := f.addClass(t, "5b", 1, 2)
	keep := f.addStudent(t, other.ID, "Keep", "Me")

	for i := 0; i < 3; i++ {
		st := f.addStudent(t, c.ID, "Kid", fmt.Sprintf("No%d", i))
		if _, err := f.store.SavePosition(ctx, roster.NewSeatingPosition(st.ID, c.ID, i, 0)); err != nil {
			t.Fatalf("SavePosition() error = %v", err)
		}
		for j := 0; j < 2; j++ {
			if _, err := f.store.AddRating(ctx, roster.NewRating(st.ID, c.ID, roster.IntValue(1))); err != nil {
				t.Fatalf("AddRating() error = %v", err)
			}
		}
	}

	if err := f.store.DeleteClass(ctx, c.ID); err != nil {
		t.Fatalf("DeleteClass() error = %v", err)
	}

	reloaded := NewDataStore(f.engine, f.snaps, nil, nil, 0)
	if err := reloaded.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if _, ok := reloaded.GetClass(c.ID); ok {
		t.Error("class still present")
	}
	if got := len(reloaded.StudentsForClass(c.ID, true)); got != 0 {
		t.Errorf("orphaned students = %d", got)
	}
	if got := len(reloaded.PositionsForClass(c.ID)); got != 0 {
		t.Errorf("orphaned positions = %d", got)
	}
	if got := len(reloaded.RatingsForClass(c.ID, true)); got != 0 {
		t.Errorf("orphaned ratings = %d", got)
	}
	if _, ok := reloaded.GetStudent(keep.ID); !ok {
		t.Error("student of another class was deleted")
	}
}

func TestDeleteStudentContinuesAfterChildFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.addClass(t, "5a", 1, 1)
	st := f.addStudent(t, c.ID, "Anna", "Adler")
	if _, err := f.store.AddRating(ctx, roster.NewRating(st.ID, c.ID, nil)); err != nil {
		t.Fatalf("AddRating() error = %v", err)
	}

	boom := errors.New("boom")
	f.engine.FailOn(repository.TableRatings, repository.OpDelete, boom)
	f.snaps.FailWith(boom)

	if err := f.store.DeleteStudent(ctx, st.ID); err != nil {
		t.Fatalf("DeleteStudent() error = %v", err)
	}
	if _, ok := f.store.GetStudent(st.ID); ok {
		t.Error("student should be deleted even if a rating delete failed")
	}
}

func TestRatings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.addClass(t, "5a", 1, 1)
	st := f.addStudent(t, c.ID, "Anna", "Adler")

	if _, err := f.store.AddRating(ctx, roster.NewRating(st.ID, c.ID, roster.IntValue(5))); !errors.Is(err, roster.ErrValidation) {
		t.Errorf("value above class maximum: error = %v", err)
	}
	absent := roster.NewRating(st.ID, c.ID, nil)
	absent.IsAbsent = true
	absent.SchoolYear = ""
	r, err := f.store.AddRating(ctx, absent)
	if err != nil {
		t.Fatalf("AddRating() error = %v", err)
	}
	if r.SchoolYear != roster.SchoolYearFor(r.Date) {
		t.Errorf("SchoolYear = %q, want derived value", r.SchoolYear)
	}
	if _, err := f.store.AddRating(ctx, roster.NewRating(st.ID, c.ID, roster.IntValue(2))); err != nil {
		t.Fatalf("AddRating() error = %v", err)
	}

	if err := f.store.ArchiveRating(ctx, r.ID); err != nil {
		t.Fatalf("ArchiveRating() error = %v", err)
	}
	if got := len(f.store.RatingsForStudent(st.ID, false)); got != 1 {
		t.Errorf("active ratings = %d, want 1", got)
	}
	if got := len(f.store.RatingsForStudent(st.ID, true)); got != 2 {
		t.Errorf("all ratings = %d, want 2", got)
	}
	if err := f.store.DeleteRating(ctx, r.ID); err != nil {
		t.Fatalf("DeleteRating() error = %v", err)
	}
	if err := f.store.DeleteRating(ctx, r.ID); !errors.Is(err, roster.ErrNotFound) {
		t.Errorf("second DeleteRating() error = %v, want not found", err)
	}
}

func TestSavePositionUpsertsByPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.addClass(t, "5a", 1, 1)
	st := f.addStudent(t, c.ID, "Anna", "Adler")

	first, err := f.store.SavePosition(ctx, roster.NewSeatingPosition(st.ID, c.ID, 1, 1))
	if err != nil {
		t.Fatalf("SavePosition() error = %v", err)
	}
	moved := roster.NewSeatingPosition(st.ID, c.ID, 4, 2)
	moved.IsCustomPosition = true
	second, err := f.store.SavePosition(ctx, moved)
	if err != nil {
		t.Fatalf("SavePosition() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("SavePosition() created a second position for the pair")
	}
	p, ok := f.store.PositionFor(st.ID, c.ID)
	if !ok || p.XPos != 4 || p.YPos != 2 || !p.IsCustomPosition {
		t.Errorf("PositionFor() = %+v, %v", p, ok)
	}
	if got := len(f.store.PositionsForClass(c.ID)); got != 1 {
		t.Errorf("positions = %d, want 1", got)
	}
}

func TestEngineFailureFallsBackToSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.addClass(t, "5a", 1, 1)

	f.engine.FailAll(errors.New("connection refused"))
	st, err := f.store.AddStudent(ctx, roster.NewStudent(c.ID, "Anna", "Adler"))
	if err != nil {
		t.Fatalf("AddStudent() error = %v, want fallback", err)
	}
	if _, ok := f.store.GetStudent(st.ID); !ok {
		t.Error("student missing from cache after fallback")
	}

	status := f.store.Status()
	if !status.Degraded || status.Active != BackendSnapshot || status.FallbackCount != 1 {
		t.Errorf("Status() = %+v", status)
	}
	if status.LastError == "" || status.LastFallbackAt == nil {
		t.Errorf("Status() missing failure details: %+v", status)
	}
	if f.notifier.count(roster.EntityBackend, roster.ChangeDegraded) != 1 {
		t.Error("degraded event not published")
	}

	snap, err := f.snaps.LoadSnapshot(ctx)
	if err != nil || snap == nil {
		t.Fatalf("LoadSnapshot() = %v, %v", snap, err)
	}
	if len(snap.Students) != 1 || len(snap.Classes) != 1 {
		t.Errorf("snapshot holds %d students, %d classes", len(snap.Students), len(snap.Classes))
	}

	f.engine.Reset()
	f.addStudent(t, c.ID, "Bert", "Bauer")
	if f.store.Status().Degraded {
		t.Error("store should recover after a successful engine write")
	}
	if f.notifier.count(roster.EntityBackend, roster.ChangeRestored) != 1 {
		t.Error("restored event not published")
	}
	if snap, err := f.snaps.LoadSnapshot(ctx); err != nil || snap != nil {
		t.Errorf("snapshot should be cleared after recovery, got %+v, %v", snap, err)
	}
}

func TestBothBackendsFailingLeavesCacheUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.addClass(t, "5a", 1, 1)

	f.engine.FailAll(errors.New("engine down"))
	f.snaps.FailWith(errors.New("redis down"))

	_, err := f.store.AddStudent(ctx, roster.NewStudent(c.ID, "Anna", "Adler"))
	if !errors.Is(err, roster.ErrPersistence) {
		t.Fatalf("AddStudent() error = %v, want persistence error", err)
	}
	var perr *roster.PersistenceError
	if !errors.As(err, &perr) || perr.Op != "add" || perr.Entity != roster.EntityStudent {
		t.Errorf("error = %#v", err)
	}
	if got := len(f.store.Students()); got != 0 {
		t.Errorf("cache holds %d students, want 0", got)
	}
}

func TestLoadAllFallsBackToSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.addClass(t, "5a", 1, 1)

	f.engine.FailAll(errors.New("engine down"))
	f.addStudent(t, c.ID, "Anna", "Adler")

	restarted := NewDataStore(f.engine, f.snaps, nil, nil, 0)
	if err := restarted.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if !restarted.Status().Degraded {
		t.Error("store loaded from snapshot should start degraded")
	}
	if got := len(restarted.StudentsForClass(c.ID, false)); got != 1 {
		t.Errorf("students = %d, want 1", got)
	}

	f.snaps.FailWith(errors.New("redis down"))
	empty := NewDataStore(f.engine, f.snaps, nil, nil, 0)
	if err := empty.LoadAll(ctx); !errors.Is(err, roster.ErrPersistence) {
		t.Errorf("LoadAll() error = %v, want persistence error", err)
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	missing := uuid.New()

	checks := map[string]error{
		"DeleteClass":    f.store.DeleteClass(ctx, missing),
		"ArchiveClass":   f.store.ArchiveClass(ctx, missing),
		"DeleteStudent":  f.store.DeleteStudent(ctx, missing),
		"ArchiveStudent": f.store.ArchiveStudent(ctx, missing),
		"DeletePosition": f.store.DeletePosition(ctx, missing),
		"ArchiveRating":  f.store.ArchiveRating(ctx, missing),
	}
	for name, err := range checks {
		if !errors.Is(err, roster.ErrNotFound) {
			t.Errorf("%s() error = %v, want not found", name, err)
		}
	}
	if _, ok := f.store.GetStudent(missing); ok {
		t.Error("GetStudent() found a missing id")
	}
}

func TestConcurrentStudentUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.addClass(t, "5a", 1, 1)
	st := f.addStudent(t, c.ID, "Anna", "Adler")

	a := st
	a.FirstName, a.Notes = "Alpha", "alpha notes"
	b := st
	b.FirstName, b.Notes = "Beta", "beta notes"

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := f.store.UpdateStudent(ctx, a); err != nil {
				t.Errorf("UpdateStudent(a) error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := f.store.UpdateStudent(ctx, b); err != nil {
				t.Errorf("UpdateStudent(b) error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := f.store.GetStudent(st.ID)
	switch {
	case got.FirstName == "Alpha" && got.Notes == "alpha notes":
	case got.FirstName == "Beta" && got.Notes == "beta notes":
	default:
		t.Errorf("mixed record: %+v", got)
	}
}

func TestRecoveryWritesOutageChangesToEngine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gone := f.addClass(t, "5b", 1, 2)

	f.engine.FailOn(repository.TableClasses, repository.OpSave, errors.New("connection reset"))
	c := f.addClass(t, "5a", 1, 1)
	if err := f.store.DeleteClass(ctx, gone.ID); err != nil {
		t.Fatalf("DeleteClass() error = %v", err)
	}
	if !f.store.Status().Degraded {
		t.Fatal("store should be degraded after the failed class save")
	}

	f.engine.Reset()
	st := f.addStudent(t, c.ID, "Ada", "Adler")

	status := f.store.Status()
	if status.Degraded || status.Active != BackendEngine {
		t.Errorf("Status() = %+v, want engine", status)
	}

	restarted := NewDataStore(f.engine, f.snaps, nil, nil, 0)
	if err := restarted.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if _, ok := restarted.GetClass(c.ID); !ok {
		t.Error("class written during the outage is missing after restart")
	}
	if _, ok := restarted.GetClass(gone.ID); ok {
		t.Error("class deleted during the outage came back after restart")
	}
	for _, s := range restarted.Students() {
		if _, ok := restarted.GetClass(s.ClassID); !ok {
			t.Errorf("student %s references missing class %s", s.FullName(), s.ClassID)
		}
	}
	if _, ok := restarted.GetStudent(st.ID); !ok {
		t.Error("student missing after restart")
	}
}

func TestLoadAllReplaysPendingSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.FailAll(errors.New("engine down"))
	c := f.addClass(t, "5a", 1, 1)
	f.addStudent(t, c.ID, "Anna", "Adler")

	f.engine.Reset()
	restarted := NewDataStore(f.engine, f.snaps, nil, nil, 0)
	if err := restarted.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if restarted.Status().Degraded {
		t.Error("store should not be degraded after a successful replay")
	}
	if got := len(restarted.StudentsForClass(c.ID, false)); got != 1 {
		t.Errorf("students = %d, want 1", got)
	}

	dump := f.engine.Dump()
	if len(dump.Classes) != 1 || len(dump.Students) != 1 {
		t.Errorf("engine holds %d classes, %d students, want 1 and 1", len(dump.Classes), len(dump.Students))
	}
	if snap, err := f.snaps.LoadSnapshot(ctx); err != nil || snap != nil {
		t.Errorf("snapshot should be cleared after replay, got %+v, %v", snap, err)
	}
}

func TestLoadAllStaysDegradedWhenReplayFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.FailAll(errors.New("engine down"))
	f.addClass(t, "5a", 1, 1)

	f.engine.Reset()
	f.engine.FailOn(repository.TableAny, repository.OpTransaction, errors.New("read only"))

	restarted := NewDataStore(f.engine, f.snaps, nil, nil, 0)
	if err := restarted.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if !restarted.Status().Degraded {
		t.Error("store should stay degraded when the snapshot cannot be replayed")
	}
	if got := len(restarted.Classes()); got != 1 {
		t.Errorf("classes = %d, want the snapshot contents", got)
	}
}

func TestRecoveryWaitsForSnapshotClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.FailAll(errors.New("engine down"))
	c := f.addClass(t, "5a", 1, 1)

	f.engine.Reset()
	f.snaps.FailWith(errors.New("redis down"))
	f.addStudent(t, c.ID, "Anna", "Adler")
	if !f.store.Status().Degraded {
		t.Error("store should stay degraded while the old snapshot cannot be cleared")
	}
	if got := len(f.engine.Dump().Students); got != 1 {
		t.Errorf("engine students = %d, want 1", got)
	}

	f.snaps.FailWith(nil)
	f.addStudent(t, c.ID, "Bert", "Bauer")
	if f.store.Status().Degraded {
		t.Error("store should recover once the snapshot is cleared")
	}
	if snap, _ := f.snaps.LoadSnapshot(ctx); snap != nil {
		t.Error("snapshot should be cleared")
	}
}
