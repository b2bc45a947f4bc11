package relay

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/TrackDesk/internal/metrics"
	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/storage/pgstore"
)

type Repository interface {
	ClaimDueOutbox(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id uint64, at time.Time) error
	MarkOutboxFailed(ctx context.Context, f pgstore.OutboxFailure) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Relay переносит сообщения из outbox в Kafka.
type Relay struct {
	repo     Repository
	producer Producer

	planner *Planner

	pollInterval   time.Duration
	batchSize      int
	concurrency    int
	lease          time.Duration
	publishTimeout time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalSent           atomic.Int64
	totalErrors         atomic.Int64
	totalDead           atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, producer Producer) *Relay {
	return &Relay{
		repo: repo, producer: producer,
		planner:           DefaultPlanner(),
		pollInterval:      time.Second,
		batchSize:         100,
		concurrency:       8,
		lease:             60 * time.Second,
		publishTimeout:    10 * time.Second,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func DefaultPlanner() *Planner {
	return NewPlanner(DefaultPlannerConfig(), nil)
}

func (r *Relay) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration) *Relay {
	if pollInterval > 0 {
		r.pollInterval = pollInterval
	}
	if batchSize > 0 {
		r.batchSize = batchSize
	}
	if concurrency > 0 {
		r.concurrency = concurrency
	}
	if lease > 0 {
		r.lease = lease
	}
	return r
}

func (r *Relay) WithPlanner(cfg PlannerConfig) *Relay {
	r.planner = NewPlanner(cfg, nil)
	return r
}

// Trigger forces an immediate relay cycle (best-effort, non-blocking).
func (r *Relay) Trigger() {
	r.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed  int64      `json:"totalClaimed"`
	TotalSent     int64      `json:"totalSent"`
	TotalErrors   int64      `json:"totalErrors"`
	TotalDead     int64      `json:"totalDead"`
	InFlight      int64      `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
}

func (r *Relay) Stats() Stats {
	st := Stats{
		StartedAt:    time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalClaimed: r.totalClaimed.Load(),
		TotalSent:    r.totalSent.Load(),
		TotalErrors:  r.totalErrors.Load(),
		TotalDead:    r.totalDead.Load(),
		InFlight:     r.inFlight.Load(),
	}
	if n := r.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := r.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	r.lastErrorMu.Lock()
	st.LastError = r.lastError
	r.lastErrorMu.Unlock()
	return st
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.drain(ctx)
		case <-r.triggerCh:
			r.drain(ctx)
		}
	}
}

// drain повторяет циклы, пока что-то забирается: следующее событие ключа
// становится доступным только после отправки предыдущего.
func (r *Relay) drain(ctx context.Context) {
	for ctx.Err() == nil && r.runOnce(ctx) > 0 {
	}
}

func (r *Relay) runOnce(ctx context.Context) int {
	now := time.Now().UTC()
	r.lastCycleUnixNano.Store(now.UnixNano())

	items, err := r.repo.ClaimDueOutbox(ctx, now, r.batchSize, r.lease)
	if err != nil {
		slog.Error("claim due outbox", "error", err.Error())
		r.setLastError(err)
		return 0
	}
	r.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for _, group := range groupByKey(items) {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			r.processGroup(ctx, group)
		}()
	}
	wg.Wait()
	return len(items)
}

// processGroup публикует сообщения одного ключа по очереди. После ошибки
// хвост не трогаем: он останется под lease и вернётся после головы.
func (r *Relay) processGroup(ctx context.Context, group []*models.OutboxMessage) {
	for _, m := range group {
		r.inFlight.Add(1)
		metrics.OutboxInFlight.Inc()
		err := r.processOne(ctx, m)
		r.inFlight.Add(-1)
		metrics.OutboxInFlight.Dec()
		if err != nil {
			r.totalErrors.Add(1)
			r.setLastError(err)
			slog.Error("relay outbox message", "outbox_id", m.ID, "topic", m.Topic, "error", err.Error())
			return
		}
	}
}

// groupByKey сохраняет порядок внутри ключа и порядок первого появления ключей.
func groupByKey(items []*models.OutboxMessage) [][]*models.OutboxMessage {
	idx := make(map[string]int, len(items))
	var groups [][]*models.OutboxMessage
	for _, m := range items {
		i, ok := idx[m.Key]
		if !ok {
			i = len(groups)
			idx[m.Key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], m)
	}
	return groups
}

func (r *Relay) processOne(ctx context.Context, m *models.OutboxMessage) error {
	pubCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	pubErr := r.producer.Publish(pubCtx, m.Topic, []byte(m.Key), m.Payload)
	cancel()

	now := time.Now().UTC()
	if pubErr == nil {
		r.totalSent.Add(1)
		metrics.OutboxPublishedTotal.Inc()
		return r.repo.MarkOutboxSent(ctx, m.ID, now)
	}

	metrics.OutboxFailedTotal.Inc()
	attempts := m.Attempts + 1
	f := pgstore.OutboxFailure{
		ID:            m.ID,
		Attempts:      attempts,
		NextAttemptAt: now.Add(r.planner.BackoffDelay(attempts)),
		Error:         pubErr.Error(),
		Dead:          r.planner.Exhausted(attempts),
	}
	if f.Dead {
		r.totalDead.Add(1)
		metrics.OutboxDeadTotal.Inc()
		slog.Warn("outbox message is dead", "outbox_id", m.ID, "topic", m.Topic, "attempts", attempts)
	}
	if err := r.repo.MarkOutboxFailed(ctx, f); err != nil {
		return err
	}
	return pubErr
}

func (r *Relay) setLastError(err error) {
	r.lastErrorMu.Lock()
	r.lastError = err.Error()
	r.lastErrorMu.Unlock()
}
