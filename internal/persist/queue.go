// Package persist реализует очередь операций сохранения и уведомлений.
// Вызывающая сторона не ждёт результата, но ошибки не теряются: они
// логируются, считаются в метриках и доступны через Failures.
package persist

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/helpmed-dispatch/internal/metrics"
)

// ErrQueueFull фиксируется как сбой, если операцию не удалось поставить в очередь.
var ErrQueueFull = errors.New("persistence queue is full")

// Op описывает одну операцию сохранения или уведомления.
type Op struct {
	Name     string
	EntityID string
	Run      func(ctx context.Context) error
}

// Failure описывает неудавшуюся операцию.
type Failure struct {
	Op       string    `json:"op"`
	EntityID string    `json:"entity_id"`
	Error    string    `json:"error"`
	At       time.Time `json:"at"`
}

// Queue реализует ограниченную очередь с одним обработчиком.
type Queue struct {
	ops     chan Op
	logger  *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	mu          sync.Mutex
	failures    []Failure
	maxFailures int
}

// NewQueue создаёт очередь ёмкостью size. m может быть nil.
func NewQueue(size int, logger *zap.Logger, m *metrics.Metrics) *Queue {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		ops:         make(chan Op, size),
		logger:      logger,
		metrics:     m,
		timeout:     10 * time.Second,
		maxFailures: 100,
	}
}

// Enqueue ставит операцию в очередь без блокировки.
func (q *Queue) Enqueue(op Op) bool {
	select {
	case q.ops <- op:
		q.backlog()
		return true
	default:
		q.fail(op, ErrQueueFull)
		return false
	}
}

// Run обрабатывает операции до отмены ctx, после чего дорабатывает накопленное.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.drain()
			return
		case op := <-q.ops:
			q.execute(context.WithoutCancel(ctx), op)
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case op := <-q.ops:
			q.execute(context.Background(), op)
		default:
			return
		}
	}
}

func (q *Queue) execute(parent context.Context, op Op) {
	ctx, cancel := context.WithTimeout(parent, q.timeout)
	defer cancel()

	err := op.Run(ctx)
	q.backlog()
	if err != nil {
		q.fail(op, err)
		return
	}
	if q.metrics != nil {
		q.metrics.PersistOps.WithLabelValues(op.Name, "ok").Inc()
	}
}

func (q *Queue) fail(op Op, err error) {
	q.logger.Error("persist operation failed",
		zap.String("op", op.Name),
		zap.String("entity_id", op.EntityID),
		zap.Error(err),
	)
	if q.metrics != nil {
		q.metrics.PersistOps.WithLabelValues(op.Name, "error").Inc()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.failures = append(q.failures, Failure{
		Op:       op.Name,
		EntityID: op.EntityID,
		Error:    err.Error(),
		At:       time.Now(),
	})
	if len(q.failures) > q.maxFailures {
		q.failures = slices.Delete(q.failures, 0, len(q.failures)-q.maxFailures)
	}
}

func (q *Queue) backlog() {
	if q.metrics != nil {
		q.metrics.PersistBacklog.Set(float64(len(q.ops)))
	}
}

// Failures возвращает последние сбои, от старых к новым.
func (q *Queue) Failures() []Failure {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.failures)
}

// Pending возвращает число операций в очереди.
func (q *Queue) Pending() int {
	return len(q.ops)
}
