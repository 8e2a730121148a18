package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/panjf2000/ants/v2"
)

// WorkerPoolDispatchService runs dispatches on a bounded ants pool
type WorkerPoolDispatchService struct {
	baseService DispatchService
	pool        *ants.Pool
	logger      *slog.Logger
}

var (
	_ DispatchService = (*WorkerPoolDispatchService)(nil)
	_ BatchDispatcher = (*WorkerPoolDispatchService)(nil)
)

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolDispatchService(
	baseService DispatchService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolDispatchService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolDispatchService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// Dispatch submits one event to the pool and waits for its result.
func (s *WorkerPoolDispatchService) Dispatch(ctx context.Context, ev event.Event) error {
	resultChan := make(chan error, 1)

	err := s.pool.Submit(func() {
		resultChan <- s.run(ctx, ev)
	})
	if err != nil {
		s.logger.Error("Failed to submit event to worker pool", "event_id", ev.EventID(), "error", err)
		return err
	}

	return <-resultChan
}

// DispatchAll submits every event and waits for all of them. errs[i] is the result
// for events[i].
func (s *WorkerPoolDispatchService) DispatchAll(ctx context.Context, events []event.Event) []error {
	errs := make([]error, len(events))
	var wg sync.WaitGroup

	for i, ev := range events {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			errs[i] = s.run(ctx, ev)
		})
		if err != nil {
			wg.Done()
			s.logger.Error("Failed to submit event to worker pool", "event_id", ev.EventID(), "error", err)
			errs[i] = err
		}
	}

	wg.Wait()
	return errs
}

// run dispatches on a pool worker, turning a panic into an error so the waiter is released
func (s *WorkerPoolDispatchService) run(ctx context.Context, ev event.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Panic recovered while dispatching event",
				"event_id", ev.EventID(),
				"panic", p,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("panic while dispatching event %s: %v", ev.EventID(), p)
		}
	}()
	return s.baseService.Dispatch(ctx, ev)
}

// Shutdown waits for running dispatches and releases the pool.
func (s *WorkerPoolDispatchService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolDispatchService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolDispatchService) Capacity() int {
	return s.pool.Cap()
}
