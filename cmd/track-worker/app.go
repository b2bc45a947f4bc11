package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/BearBump/TrackDesk/config"
	"github.com/BearBump/TrackDesk/internal/broker/kafka"
	"github.com/BearBump/TrackDesk/internal/services/relay"
	"github.com/BearBump/TrackDesk/internal/storage/pgstore"
)

// outboxStore: то, что воркеру нужно от хранилища.
type outboxStore interface {
	relay.Repository
	CountOutboxByStatus(ctx context.Context) (map[string]int, error)
	Ping(ctx context.Context) error
}

type workerFactories struct {
	newStorage  func(cfg *config.Config) (store outboxStore, closeFn func(), err error)
	newProducer func(cfg *config.Config) relay.Producer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (outboxStore, func(), error) {
			st, err := pgstore.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) relay.Producer {
			return kafka.NewProducer([]string{cfg.Kafka.Broker()})
		},
	}
}

type relaySettings struct {
	pollInterval time.Duration
	batchSize    int
	concurrency  int
	lease        time.Duration
	planner      relay.PlannerConfig
}

func relaySettingsFromConfig(cfg *config.Config) relaySettings {
	td := cfg.TrackDesk

	pollInterval := time.Duration(td.RelayPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	batchSize := td.RelayBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := td.RelayConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	lease := time.Duration(td.RelayLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 60 * time.Second
	}

	pc := relay.DefaultPlannerConfig()
	pc.JitterPercent = 10
	if td.RelayMaxAttempts > 0 {
		pc.MaxAttempts = int32(td.RelayMaxAttempts)
	}
	for i, sec := range []int{td.RelayBackoff1Seconds, td.RelayBackoff2Seconds, td.RelayBackoff3Seconds, td.RelayBackoff4Seconds} {
		if sec <= 0 {
			continue
		}
		d := time.Duration(sec) * time.Second
		switch i {
		case 0:
			pc.Backoff1 = d
		case 1:
			pc.Backoff2 = d
		case 2:
			pc.Backoff3 = d
		case 3:
			pc.Backoff4 = d
		}
	}

	return relaySettings{
		pollInterval: pollInterval,
		batchSize:    batchSize,
		concurrency:  concurrency,
		lease:        lease,
		planner:      pc,
	}
}

type workerRunOpts struct {
	swaggerPath string
	onListen    func(httpAddr string)
}

// RunTrackWorker поднимает relay outbox → Kafka и ops HTTP, пока не отменён ctx.
func RunTrackWorker(ctx context.Context, cfg *config.Config, f workerFactories, ro workerRunOpts) error {
	st, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer := f.newProducer(cfg)
	if c, ok := producer.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	s := relaySettingsFromConfig(cfg)
	r := relay.New(st, producer).
		WithSettings(s.pollInterval, s.batchSize, s.concurrency, s.lease).
		WithPlanner(s.planner)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    cfg.TrackDesk.RelayHTTPAddr,
			swaggerPath: ro.swaggerPath,
			onListen:    ro.onListen,
			relay:       r,
			store:       st,
			settings:    s,
		})
	}()

	slog.Info("outbox relay started",
		"poll_interval", s.pollInterval.String(), "batch", s.batchSize, "concurrency", s.concurrency)

	relayErr := make(chan error, 1)
	go func() { relayErr <- r.Run(ctx) }()

	select {
	case err := <-relayErr:
		cancel()
		<-httpErr
		return err
	case err := <-httpErr:
		cancel()
		rerr := <-relayErr
		if err != nil {
			return err
		}
		return rerr
	}
}
