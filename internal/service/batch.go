package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"classroom-roster/internal/domain/roster"
	"classroom-roster/internal/infrastructure/metrics"
	interfaces "classroom-roster/internal/interfaces/infrastructure"
	serviceInterfaces "classroom-roster/internal/interfaces/service"
	"classroom-roster/pkg/logger"

	"github.com/google/uuid"
)

// BatchOperation processes one item and reports whether it succeeded.
type BatchOperation func(ctx context.Context, id uuid.UUID) bool

type BatchResult = serviceInterfaces.BatchResult

// BatchRequest describes one batch. Entity selects how ids are looked up;
// Kind labels the emitted events. OnComplete may be nil.
type BatchRequest struct {
	Entity     roster.EntityKind
	Kind       roster.ChangeKind
	IDs        []uuid.UUID
	Operation  BatchOperation
	OnComplete func(BatchResult)
}

// Batch is a running batch. Events receives exactly one event per id and
// is closed once every item has reported in.
type Batch struct {
	events chan roster.ChangeEvent
	done   chan struct{}
	result BatchResult
}

// Events streams per-item outcomes. The channel is buffered for every
// item, so callers that only need the totals may ignore it.
func (b *Batch) Events() <-chan roster.ChangeEvent {
	return b.events
}

// Done is closed after the completion callback has returned.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until all items are processed and returns the totals.
func (b *Batch) Wait() BatchResult {
	<-b.done
	return b.result
}

// BatchOrchestrator fans a batch out to one goroutine per id and joins
// them with a WaitGroup before firing the completion callback.
type BatchOrchestrator struct {
	store    *DataStore
	notifier interfaces.Notifier
	metrics  *metrics.Recorder
}

// NewBatchOrchestrator creates an orchestrator over store. notifier and
// recorder may be nil.
func NewBatchOrchestrator(store *DataStore, notifier interfaces.Notifier, recorder *metrics.Recorder) *BatchOrchestrator {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &BatchOrchestrator{
		store:    store,
		notifier: notifier,
		metrics:  recorder,
	}
}

// Start dispatches every id and returns immediately. Ids unknown to the
// store count as failures and the operation is not called for them.
// There is no per-item timeout.
func (o *BatchOrchestrator) Start(ctx context.Context, req BatchRequest) *Batch {
	batch := &Batch{
		events: make(chan roster.ChangeEvent, len(req.IDs)),
		done:   make(chan struct{}),
	}

	logger.Info("Starting %s batch on %d %s items", req.Kind, len(req.IDs), req.Entity)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		failed    atomic.Int64
	)

	for _, id := range req.IDs {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()

			event := o.process(ctx, req, id)
			if event.Success {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
			o.metrics.BatchItem(string(req.Kind), event.Success)
			o.notifier.Publish(event)
			batch.events <- event
		}(id)
	}

	go func() {
		wg.Wait()
		batch.result = BatchResult{
			SuccessCount: int(succeeded.Load()),
			FailureCount: int(failed.Load()),
		}
		close(batch.events)

		logger.Info("Finished %s batch on %s: %d succeeded, %d failed",
			req.Kind, req.Entity, batch.result.SuccessCount, batch.result.FailureCount)
		o.notifier.Publish(roster.ChangeEvent{
			Entity:  req.Entity,
			Kind:    roster.ChangeRefreshed,
			Success: batch.result.FailureCount == 0,
			At:      time.Now(),
		})

		if req.OnComplete != nil {
			req.OnComplete(batch.result)
		}
		close(batch.done)
	}()

	return batch
}

// Run executes a batch and waits for it.
func (o *BatchOrchestrator) Run(ctx context.Context, req BatchRequest) BatchResult {
	return o.Start(ctx, req).Wait()
}

func (o *BatchOrchestrator) process(ctx context.Context, req BatchRequest, id uuid.UUID) roster.ChangeEvent {
	event := roster.ChangeEvent{Entity: req.Entity, Kind: req.Kind, ID: id}

	name, ok := o.store.DisplayName(req.Entity, id)
	if !ok {
		event.At = time.Now()
		return event
	}
	event.DisplayName = name
	event.Success = req.Operation(ctx, id)
	event.At = time.Now()
	return event
}

func batchOK(op string, entity roster.EntityKind, id uuid.UUID, err error) bool {
	if err != nil {
		logger.WithEntity(string(entity), id).Warnf("Batch %s failed: %v", op, err)
		return false
	}
	return true
}

// ArchiveStudents archives every student in ids.
func (o *BatchOrchestrator) ArchiveStudents(ctx context.Context, ids []uuid.UUID, onComplete func(BatchResult)) *Batch {
	return o.Start(ctx, BatchRequest{
		Entity: roster.EntityStudent,
		Kind:   roster.ChangeArchived,
		IDs:    ids,
		Operation: func(ctx context.Context, id uuid.UUID) bool {
			return batchOK("archive", roster.EntityStudent, id, o.store.ArchiveStudent(ctx, id))
		},
		OnComplete: onComplete,
	})
}

// DeleteStudents deletes every student in ids with their positions and ratings.
func (o *BatchOrchestrator) DeleteStudents(ctx context.Context, ids []uuid.UUID, onComplete func(BatchResult)) *Batch {
	return o.Start(ctx, BatchRequest{
		Entity: roster.EntityStudent,
		Kind:   roster.ChangeDeleted,
		IDs:    ids,
		Operation: func(ctx context.Context, id uuid.UUID) bool {
			return batchOK("delete", roster.EntityStudent, id, o.store.DeleteStudent(ctx, id))
		},
		OnComplete: onComplete,
	})
}

// MoveStudents moves every student in ids to targetClassID.
func (o *BatchOrchestrator) MoveStudents(ctx context.Context, ids []uuid.UUID, targetClassID uuid.UUID, onComplete func(BatchResult)) *Batch {
	return o.Start(ctx, BatchRequest{
		Entity: roster.EntityStudent,
		Kind:   roster.ChangeMoved,
		IDs:    ids,
		Operation: func(ctx context.Context, id uuid.UUID) bool {
			_, err := o.store.MoveStudentToClass(ctx, id, targetClassID)
			return batchOK("move", roster.EntityStudent, id, err)
		},
		OnComplete: onComplete,
	})
}

// ArchiveClasses archives every class in ids.
func (o *BatchOrchestrator) ArchiveClasses(ctx context.Context, ids []uuid.UUID, onComplete func(BatchResult)) *Batch {
	return o.Start(ctx, BatchRequest{
		Entity: roster.EntityClass,
		Kind:   roster.ChangeArchived,
		IDs:    ids,
		Operation: func(ctx context.Context, id uuid.UUID) bool {
			return batchOK("archive", roster.EntityClass, id, o.store.ArchiveClass(ctx, id))
		},
		OnComplete: onComplete,
	})
}

// DeleteClasses deletes every class in ids including everything they own.
func (o *BatchOrchestrator) DeleteClasses(ctx context.Context, ids []uuid.UUID, onComplete func(BatchResult)) *Batch {
	return o.Start(ctx, BatchRequest{
		Entity: roster.EntityClass,
		Kind:   roster.ChangeDeleted,
		IDs:    ids,
		Operation: func(ctx context.Context, id uuid.UUID) bool {
			return batchOK("delete", roster.EntityClass, id, o.store.DeleteClass(ctx, id))
		},
		OnComplete: onComplete,
	})
}

// ArchiveRatings archives every rating in ids.
func (o *BatchOrchestrator) ArchiveRatings(ctx context.Context, ids []uuid.UUID, onComplete func(BatchResult)) *Batch {
	return o.Start(ctx, BatchRequest{
		Entity: roster.EntityRating,
		Kind:   roster.ChangeArchived,
		IDs:    ids,
		Operation: func(ctx context.Context, id uuid.UUID) bool {
			return batchOK("archive", roster.EntityRating, id, o.store.ArchiveRating(ctx, id))
		},
		OnComplete: onComplete,
	})
}
