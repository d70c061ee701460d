package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	initMetricsErr      error
	taskOpsCounter      metric.Int64Counter
	taskOpDuration      metric.Float64Histogram
	sseConnectionsGauge metric.Int64ObservableGauge
	sseEventsCounter    metric.Int64Counter
	sseConnections      int64
	sseConnectionsMu    sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times; only runs once.
// Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	initMetricsOnce.Do(func() {
		initMetricsErr = initInstruments()
	})
	return initMetricsErr
}

func initInstruments() error {
	m := Meter()
	var err error
	taskOpsCounter, err = m.Int64Counter("signoff_task_operations_total", metric.WithDescription("Total task store operations by operation and outcome"))
	if err != nil {
		return err
	}
	taskOpDuration, err = m.Float64Histogram("signoff_task_operation_duration_seconds", metric.WithDescription("Task store operation latency in seconds"))
	if err != nil {
		return err
	}
	sseEventsCounter, err = m.Int64Counter("signoff_sse_events_total", metric.WithDescription("Total SSE events published"))
	if err != nil {
		return err
	}
	sseConnectionsGauge, err = m.Int64ObservableGauge("signoff_sse_connections", metric.WithDescription("Current SSE subscriber count"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		sseConnectionsMu.Lock()
		n := sseConnections
		sseConnectionsMu.Unlock()
		o.ObserveInt64(sseConnectionsGauge, n)
		return nil
	}, sseConnectionsGauge)
	return err
}

// RecordTaskOp records one store operation (create, get, list, comment, recommend, clear)
// with its outcome (ok, not_found, unauthorized, ...) and duration.
func RecordTaskOp(ctx context.Context, op, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(AttrOperation.String(op), AttrOutcome.String(outcome))
	if taskOpsCounter != nil {
		taskOpsCounter.Add(ctx, 1, attrs)
	}
	if taskOpDuration != nil {
		taskOpDuration.Record(ctx, d.Seconds(), attrs)
	}
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}

// TaskCountFunc returns the number of stored tasks. Used for the signoff_tasks gauge.
type TaskCountFunc func(ctx context.Context) (int64, error)

// InitMetricsWithTaskCount creates instruments and optionally registers a callback for
// the task gauge. Call after InitMeterProvider. If taskCount is nil, the gauge is not reported.
func InitMetricsWithTaskCount(ctx context.Context, taskCount TaskCountFunc) error {
	if err := InitMetrics(ctx); err != nil {
		return err
	}
	if taskCount == nil {
		return nil
	}
	m := Meter()
	tasksGauge, err := m.Int64ObservableGauge("signoff_tasks", metric.WithDescription("Number of stored tasks"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		n, err := taskCount(ctx)
		if err != nil {
			// Skip this collection; the next scrape retries.
			return nil
		}
		o.ObserveInt64(tasksGauge, n)
		return nil
	}, tasksGauge)
	return err
}
