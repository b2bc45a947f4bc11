package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/TrackDesk/config"
	ordersapi "github.com/BearBump/TrackDesk/internal/api/orders_api"
	"github.com/BearBump/TrackDesk/internal/broker/kafka"
	"github.com/BearBump/TrackDesk/internal/cache/rediscache"
	"github.com/BearBump/TrackDesk/internal/services/admins"
	"github.com/BearBump/TrackDesk/internal/services/orders"
	"github.com/BearBump/TrackDesk/internal/storage/pgstore"
	"github.com/redis/go-redis/v9"
)

type trackAPISettings struct {
	opts       trackAPIOpts
	orders     orders.Config
	sessionTTL time.Duration
	brokers    []string
	redis      rediscache.Options
	dbConn     string
	bootstrap  config.BootstrapConfig
}

// settingsFromConfig заполняет значения по умолчанию для того, что не задано в конфиге.
func settingsFromConfig(cfg *config.Config, swaggerPath string) trackAPISettings {
	td := cfg.TrackDesk

	grpcAddr := td.GRPCAddr
	if grpcAddr == "" {
		grpcAddr = ":50051"
	}
	httpAddr := td.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := td.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "track-api"
	}
	scansTopic := cfg.Kafka.ShipmentScansTopic
	if scansTopic == "" {
		scansTopic = "shipments.scans"
	}
	eventsTopic := cfg.Kafka.OrderEventsTopic
	if eventsTopic == "" {
		eventsTopic = "orders.events"
	}

	cacheTTL := time.Duration(td.TrackingCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	sessionTTL := time.Duration(td.SessionTTLSeconds) * time.Second
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}
	trackLimit := int64(td.TrackRateLimitPerMinute)
	if trackLimit <= 0 {
		trackLimit = 60
	}
	loginLimit := int64(td.LoginRateLimitPerMinute)
	if loginLimit <= 0 {
		loginLimit = 10
	}
	// формат уже проверен в cfg.Validate
	proxies, _ := td.TrustedProxyPrefixes()

	return trackAPISettings{
		opts: trackAPIOpts{
			grpcAddr:      grpcAddr,
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         scansTopic,
			consumerGroup: consumerGroup,
			limits: ordersapi.Limits{
				TrackPerMinute: trackLimit,
				LoginPerMinute: loginLimit,
				TrustedProxies: proxies,
			},
		},
		orders: orders.Config{
			PageSize:         td.PageSize,
			TrackingCacheTTL: cacheTTL,
			EventsTopic:      eventsTopic,
		},
		sessionTTL: sessionTTL,
		brokers:    []string{cfg.Kafka.Broker()},
		redis: rediscache.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		dbConn:    cfg.Database.ConnString(),
		bootstrap: cfg.Bootstrap,
	}
}

type trackAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     trackAPIOpts
	deps     trackAPIDeps
	consumer *kafka.Consumer
	rdb      *redis.Client
	closeDB  func()
}

func mustBootstrapTrackAPI() *trackAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	slog.SetDefault(cfg.Logging.NewLogger(os.Stdout))

	s := settingsFromConfig(cfg, swaggerPath)

	st := mustOpenPostgresWithRetry(s.dbConn, 60*time.Second)

	rdb := rediscache.NewClient(s.redis)
	orderSvc := orders.New(st, rediscache.New(rdb), s.orders)
	adminSvc := admins.New(st, rediscache.NewSessionStore(rdb, s.sessionTTL))

	if s.bootstrap.AdminEmail != "" {
		created, err := adminSvc.EnsureBootstrapAdmin(context.Background(),
			s.bootstrap.AdminName, s.bootstrap.AdminEmail, s.bootstrap.AdminPassword)
		if err != nil {
			panic(fmt.Sprintf("bootstrap admin: %v", err))
		}
		if created {
			slog.Info("bootstrap admin created", "email", s.bootstrap.AdminEmail)
		}
	}

	consumer := kafka.NewConsumer(s.brokers, s.opts.topic, s.opts.consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &trackAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts:   s.opts,
		deps: trackAPIDeps{
			orders:   orderSvc,
			admins:   adminSvc,
			limiter:  rediscache.NewRateLimiter(rdb),
			store:    st,
			consumer: consumer,
		},
		consumer: consumer,
		rdb:      rdb,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgstore.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgstore.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		slog.Warn("postgres not ready, retrying", "error", err.Error())
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *trackAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *trackAPIApp) Run() error {
	return runTrackAPI(a.ctx, a.opts, a.deps)
}
