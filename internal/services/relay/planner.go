package relay

import (
	"math/rand"
	"time"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	Backoff1 time.Duration // default: 5 seconds
	Backoff2 time.Duration // default: 30 seconds
	Backoff3 time.Duration // default: 2 minutes
	Backoff4 time.Duration // default: 10 minutes

	// MaxAttempts: после стольких неудачных публикаций сообщение помечается dead.
	MaxAttempts int32 // default: 10

	// JitterPercent добавляет случайные 0..N% к задержке, чтобы релеи не били в Kafka синхронно.
	JitterPercent int
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Backoff1:    5 * time.Second,
		Backoff2:    30 * time.Second,
		Backoff3:    2 * time.Minute,
		Backoff4:    10 * time.Minute,
		MaxAttempts: 10,
	}
}

type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.JitterPercent < 0 {
		cfg.JitterPercent = 0
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

// BackoffDelay returns the wait before the next publish attempt, given how
// many attempts have failed so far.
func (p *Planner) BackoffDelay(failedAttempts int32) time.Duration {
	var d time.Duration
	switch {
	case failedAttempts <= 1:
		d = p.cfg.Backoff1
	case failedAttempts == 2:
		d = p.cfg.Backoff2
	case failedAttempts == 3:
		d = p.cfg.Backoff3
	default:
		d = p.cfg.Backoff4
	}
	if p.cfg.JitterPercent > 0 {
		d += d * time.Duration(p.r.Intn(p.cfg.JitterPercent+1)) / 100
	}
	return d
}

func (p *Planner) Exhausted(failedAttempts int32) bool {
	return failedAttempts >= p.cfg.MaxAttempts
}
