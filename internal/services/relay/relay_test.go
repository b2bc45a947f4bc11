package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/storage/pgstore"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	mu       sync.Mutex
	keys     []string
	payloads map[string][]string
	topic    string
	err      error
	failOn   string
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.keys = append(p.keys, string(key))
	if p.failOn != "" && string(value) == p.failOn {
		return errors.New("broker down")
	}
	if p.payloads == nil {
		p.payloads = map[string][]string{}
	}
	p.payloads[string(key)] = append(p.payloads[string(key)], string(value))
	return p.err
}

type fakeRepo struct {
	mu      sync.Mutex
	due     []*models.OutboxMessage
	claimed int
	sent    []uint64
	failed  []pgstore.OutboxFailure
	err     error
}

func (r *fakeRepo) ClaimDueOutbox(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimed++
	if r.err != nil {
		return nil, r.err
	}
	out := r.due
	r.due = nil
	return out, nil
}

func (r *fakeRepo) MarkOutboxSent(ctx context.Context, id uint64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, id)
	return nil
}

func (r *fakeRepo) MarkOutboxFailed(ctx context.Context, f pgstore.OutboxFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, f)
	return nil
}

func TestRelay_processOne_MarksSent(t *testing.T) {
	repo := &fakeRepo{}
	fp := &fakeProducer{}
	r := New(repo, fp)

	m := &models.OutboxMessage{ID: 7, Topic: "orders.events", Key: "order-1", Payload: []byte(`{}`)}
	require.NoError(t, r.processOne(context.Background(), m))
	require.Equal(t, "orders.events", fp.topic)
	require.Equal(t, []string{"order-1"}, fp.keys)
	require.Equal(t, []uint64{7}, repo.sent)
	require.Empty(t, repo.failed)
}

func TestRelay_processOne_FailureSchedulesRetry(t *testing.T) {
	repo := &fakeRepo{}
	fp := &fakeProducer{err: errors.New("broker down")}
	r := New(repo, fp)

	before := time.Now().UTC()
	m := &models.OutboxMessage{ID: 8, Topic: "orders.events", Key: "k", Attempts: 1}
	err := r.processOne(context.Background(), m)
	require.ErrorContains(t, err, "broker down")
	require.Len(t, repo.failed, 1)

	f := repo.failed[0]
	require.Equal(t, uint64(8), f.ID)
	require.Equal(t, int32(2), f.Attempts)
	require.False(t, f.Dead)
	require.Equal(t, "broker down", f.Error)
	require.WithinDuration(t, before.Add(30*time.Second), f.NextAttemptAt, 2*time.Second)
	require.Empty(t, repo.sent)
}

func TestRelay_processOne_DeadAfterMaxAttempts(t *testing.T) {
	repo := &fakeRepo{}
	r := New(repo, &fakeProducer{err: errors.New("boom")}).WithPlanner(PlannerConfig{MaxAttempts: 3})

	err := r.processOne(context.Background(), &models.OutboxMessage{ID: 9, Attempts: 2})
	require.Error(t, err)
	require.True(t, repo.failed[0].Dead)
	require.Equal(t, int64(1), r.Stats().TotalDead)
}

func TestRelay_runOnce_PublishesBatch(t *testing.T) {
	repo := &fakeRepo{due: []*models.OutboxMessage{
		{ID: 1, Topic: "orders.events", Key: "a"},
		{ID: 2, Topic: "orders.events", Key: "b"},
		{ID: 3, Topic: "orders.events", Key: "c"},
	}}
	fp := &fakeProducer{}
	r := New(repo, fp).WithSettings(0, 10, 2, 0)

	r.runOnce(context.Background())

	require.ElementsMatch(t, []uint64{1, 2, 3}, repo.sent)
	st := r.Stats()
	require.Equal(t, int64(3), st.TotalClaimed)
	require.Equal(t, int64(3), st.TotalSent)
	require.Zero(t, st.InFlight)
	require.NotNil(t, st.LastCycleAt)
}

func TestRelay_runOnce_SameKeyInOrder(t *testing.T) {
	var due []*models.OutboxMessage
	for i := 1; i <= 6; i++ {
		key := "order-a"
		if i%2 == 0 {
			key = "order-b"
		}
		due = append(due, &models.OutboxMessage{ID: uint64(i), Topic: "orders.events", Key: key, Payload: []byte{byte('0' + i)}})
	}
	repo := &fakeRepo{due: due}
	fp := &fakeProducer{}
	r := New(repo, fp).WithSettings(0, 10, 8, 0)

	require.Equal(t, 6, r.runOnce(context.Background()))
	require.Equal(t, []string{"1", "3", "5"}, fp.payloads["order-a"])
	require.Equal(t, []string{"2", "4", "6"}, fp.payloads["order-b"])
}

func TestRelay_runOnce_FailedHeadHoldsKey(t *testing.T) {
	repo := &fakeRepo{due: []*models.OutboxMessage{
		{ID: 1, Topic: "orders.events", Key: "order-a", Payload: []byte("created")},
		{ID: 2, Topic: "orders.events", Key: "order-a", Payload: []byte("changed")},
		{ID: 3, Topic: "orders.events", Key: "order-b", Payload: []byte("created-b")},
	}}
	fp := &fakeProducer{failOn: "created"}
	r := New(repo, fp).WithSettings(0, 10, 8, 0)

	r.runOnce(context.Background())

	require.Equal(t, []uint64{3}, repo.sent)
	require.Len(t, repo.failed, 1)
	require.Equal(t, uint64(1), repo.failed[0].ID)
	require.Empty(t, fp.payloads["order-a"])
	require.Equal(t, int64(1), r.Stats().TotalErrors)
}

func TestRelay_drain_RunsUntilNothingClaimed(t *testing.T) {
	repo := &fakeRepo{due: []*models.OutboxMessage{{ID: 1, Topic: "orders.events", Key: "a"}}}
	r := New(repo, &fakeProducer{})

	r.drain(context.Background())
	require.Equal(t, 2, repo.claimed)
	require.Equal(t, []uint64{1}, repo.sent)
}

func TestRelay_runOnce_ClaimError(t *testing.T) {
	repo := &fakeRepo{err: errors.New("pg down")}
	r := New(repo, &fakeProducer{})

	r.runOnce(context.Background())
	require.Equal(t, "pg down", r.Stats().LastError)
}

func TestRelay_WithSettings(t *testing.T) {
	r := New(nil, nil).WithSettings(5*time.Second, 7, 9, 11*time.Second)
	require.Equal(t, 5*time.Second, r.pollInterval)
	require.Equal(t, 7, r.batchSize)
	require.Equal(t, 9, r.concurrency)
	require.Equal(t, 11*time.Second, r.lease)

	r = r.WithSettings(0, 0, 0, 0)
	require.Equal(t, 7, r.batchSize)
}
