package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/cloudmerce/internal/domain"
	"github.com/dukerupert/cloudmerce/internal/service"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance in logs
	WorkerID string

	// PollInterval is how often pending orders are swept
	PollInterval time.Duration

	// BatchSize caps how many pending orders one sweep checks
	BatchSize int

	// MaxConcurrency is the maximum number of gateway checks in flight
	MaxConcurrency int

	// OrderTimeout bounds the reconciliation of a single order
	OrderTimeout time.Duration
}

// Reconciler is the part of service.OrderService the worker drives.
type Reconciler interface {
	ListPending(ctx context.Context, limit int) ([]domain.Order, error)
	Reconcile(ctx context.Context, order *domain.Order, source string) (*domain.Order, error)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Checked int
	Settled int
	Failed  int
}

// Worker periodically reconciles pending orders against their payment gateway
// so orders become paid even when nobody reads them.
type Worker struct {
	config Config
	orders Reconciler
	logger *slog.Logger
}

// NewWorker creates a new reconciliation worker
func NewWorker(orders Reconciler, config Config, logger *slog.Logger) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Minute
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}
	if config.OrderTimeout == 0 {
		config.OrderTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		config: config,
		orders: orders,
		logger: logger,
	}
}

// Start sweeps on every tick until the context is cancelled. A sweep still
// running when the context ends is allowed to finish.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"worker_id", w.config.WorkerID,
		"poll_interval", w.config.PollInterval,
		"batch_size", w.config.BatchSize,
		"max_concurrency", w.config.MaxConcurrency,
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down", "worker_id", w.config.WorkerID)
			return ctx.Err()

		case <-ticker.C:
			res, err := w.Sweep(ctx)
			if err != nil {
				w.logger.Error("pending order sweep failed",
					"worker_id", w.config.WorkerID,
					"error", err)
				continue
			}
			if res.Checked > 0 {
				w.logger.Info("pending order sweep finished",
					"worker_id", w.config.WorkerID,
					"checked", res.Checked,
					"settled", res.Settled,
					"failed", res.Failed)
			}
		}
	}
}

// Sweep checks one batch of pending orders with bounded concurrency.
func (w *Worker) Sweep(ctx context.Context) (SweepResult, error) {
	orders, err := w.orders.ListPending(ctx, w.config.BatchSize)
	if err != nil {
		return SweepResult{}, err
	}

	var (
		settled atomic.Int64
		failed  atomic.Int64
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, w.config.MaxConcurrency)

	for i := range orders {
		order := &orders[i]

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return SweepResult{Checked: i, Settled: int(settled.Load()), Failed: int(failed.Load())}, ctx.Err()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			ok, err := w.reconcile(ctx, order)
			switch {
			case err != nil:
				failed.Add(1)
			case ok:
				settled.Add(1)
			}
		}()
	}
	wg.Wait()

	return SweepResult{
		Checked: len(orders),
		Settled: int(settled.Load()),
		Failed:  int(failed.Load()),
	}, nil
}

// reconcile reports whether the order moved to paid.
func (w *Worker) reconcile(ctx context.Context, order *domain.Order) (bool, error) {
	orderCtx, cancel := context.WithTimeout(withEcommerceContext(ctx, order), w.config.OrderTimeout)
	defer cancel()

	updated, err := w.orders.Reconcile(orderCtx, order, service.SourceSweep)
	if err != nil {
		w.logger.Warn("order reconciliation failed",
			"ecommerce_id", order.EcommerceID,
			"order_id", order.ID,
			"error_code", domain.ErrorCode(err),
			"error", err)
		return false, err
	}
	return updated.Status == domain.OrderStatusPaid, nil
}
