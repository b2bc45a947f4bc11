package main

import (
	"context"
	"io"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/TrackDesk/config"
	ordersapi "github.com/BearBump/TrackDesk/internal/api/orders_api"
	"github.com/BearBump/TrackDesk/internal/broker/kafka"
	"github.com/BearBump/TrackDesk/internal/broker/messages"
	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// fakeOrders реализует только ApplyScan, остальное в этих тестах не вызывается.
type fakeOrders struct {
	ordersapi.OrdersService
	err     error
	applied []messages.ShipmentScan
}

func (f *fakeOrders) ApplyScan(ctx context.Context, scan messages.ShipmentScan) error {
	f.applied = append(f.applied, scan)
	return f.err
}

type fakeStore struct{ err error }

func (s fakeStore) Ping(ctx context.Context) error { return s.err }

type blockingConsumer struct{}

func (blockingConsumer) Consume(ctx context.Context, handler kafka.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

type failingConsumer struct{}

func (failingConsumer) Consume(ctx context.Context, handler kafka.Handler) error {
	return handler(nil, []byte(`{"tracking_number":"LBC10001","status":"In Transit"}`))
}

func writeSwagger(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"swagger":"2.0"}`), 0o600))
	return p
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestRunTrackAPI_ServesOpsAndHealth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type addrs struct{ grpc, http string }
	addrCh := make(chan addrs, 1)

	opts := trackAPIOpts{
		grpcAddr:      "127.0.0.1:0",
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   writeSwagger(t),
		topic:         "shipments.scans",
		consumerGroup: "g",
		onListen:      func(g, h string) { addrCh <- addrs{g, h} },
	}
	deps := trackAPIDeps{
		orders:   &fakeOrders{},
		admins:   nil,
		store:    fakeStore{},
		consumer: blockingConsumer{},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- runTrackAPI(ctx, opts, deps) }()
	a := <-addrCh
	base := "http://" + a.http

	code, body := get(t, base+"/swagger.json")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"swagger"`)

	code, _ = get(t, base+"/healthz")
	require.Equal(t, http.StatusOK, code)

	code, body = get(t, base+"/readyz")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "ready")

	code, body = get(t, base+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "go_goroutines")

	code, body = get(t, base+"/api/v1/statuses")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "Out for Delivery")

	conn, err := grpc.NewClient(a.grpc, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	hc := healthpb.NewHealthClient(conn)
	require.Eventually(t, func() bool {
		resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting track-api to stop")
	}
}

func TestRunTrackAPI_ReadyzReportsStoreFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := trackAPIOpts{
		grpcAddr:    "127.0.0.1:0",
		httpAddr:    "127.0.0.1:0",
		swaggerPath: writeSwagger(t),
		onListen:    func(_, h string) { addrCh <- h },
	}
	deps := trackAPIDeps{
		orders:   &fakeOrders{},
		store:    fakeStore{err: errors.New("connection refused")},
		consumer: blockingConsumer{},
	}
	errCh := make(chan error, 1)
	go func() { errCh <- runTrackAPI(ctx, opts, deps) }()

	code, body := get(t, "http://"+<-addrCh+"/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Contains(t, body, "connection refused")

	cancel()
	require.Error(t, <-errCh)
}

func TestRunTrackAPI_ConsumerFailureStopsService(t *testing.T) {
	opts := trackAPIOpts{
		grpcAddr:    "127.0.0.1:0",
		httpAddr:    "127.0.0.1:0",
		swaggerPath: writeSwagger(t),
	}
	svc := &fakeOrders{err: models.NewStoreError("append tracking event", errors.New("db down"))}
	deps := trackAPIDeps{orders: svc, consumer: failingConsumer{}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	select {
	case err := <-runAsync(ctx, opts, deps):
		require.ErrorContains(t, err, "scan consumer")
		require.ErrorContains(t, err, "db down")
	case <-time.After(3 * time.Second):
		t.Fatal("consumer failure did not stop track-api")
	}
	require.Len(t, svc.applied, 1)
}

func runAsync(ctx context.Context, opts trackAPIOpts, deps trackAPIDeps) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- runTrackAPI(ctx, opts, deps) }()
	return ch
}

func TestRunTrackAPI_MissingSwagger(t *testing.T) {
	err := runTrackAPI(context.Background(), trackAPIOpts{swaggerPath: filepath.Join(t.TempDir(), "nope.json")}, trackAPIDeps{})
	require.ErrorContains(t, err, "swagger file not found")
}

func TestScanHandler(t *testing.T) {
	ctx := context.Background()

	svc := &fakeOrders{}
	h := scanHandler(ctx, svc)

	require.NoError(t, h(nil, []byte(`{"tracking_number":"LBC10001","status":"In Transit","location":"Cebu Hub"}`)))
	require.Len(t, svc.applied, 1)
	require.Equal(t, "LBC10001", svc.applied[0].TrackingNumber)
	require.Equal(t, "Cebu Hub", *svc.applied[0].Location)

	require.ErrorIs(t, h(nil, []byte(`not json`)), kafka.ErrSkipMessage)

	svc.err = errors.Wrap(models.ErrNotFound, "order LBC404")
	require.ErrorIs(t, h(nil, []byte(`{"tracking_number":"LBC404","status":"Delivered"}`)), kafka.ErrSkipMessage)

	svc.err = &models.InvalidTransitionError{From: models.StatusDelivered, To: models.StatusPending}
	require.ErrorIs(t, h(nil, []byte(`{"tracking_number":"LBC10001","status":"Pending"}`)), kafka.ErrSkipMessage)

	svc.err = models.NewStoreError("append tracking event", errors.New("db down"))
	err := h(nil, []byte(`{"tracking_number":"LBC10001","status":"Delivered"}`))
	require.Error(t, err)
	require.NotErrorIs(t, err, kafka.ErrSkipMessage)
}

func TestSettingsFromConfig_Defaults(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{Host: "db", Username: "u", Password: "p", DBName: "trackdesk"},
		Kafka:    config.KafkaConfig{Host: "kafka", Port: 9092},
		Redis:    config.RedisConfig{Host: "redis", Port: 6379},
	}
	s := settingsFromConfig(cfg, "/srv/swagger.json")

	require.Equal(t, ":50051", s.opts.grpcAddr)
	require.Equal(t, ":8080", s.opts.httpAddr)
	require.Equal(t, "shipments.scans", s.opts.topic)
	require.Equal(t, "track-api", s.opts.consumerGroup)
	require.Equal(t, ordersapi.Limits{TrackPerMinute: 60, LoginPerMinute: 10}, s.opts.limits)
	require.Equal(t, "orders.events", s.orders.EventsTopic)
	require.Equal(t, 5*time.Minute, s.orders.TrackingCacheTTL)
	require.Equal(t, 12*time.Hour, s.sessionTTL)
	require.Equal(t, []string{"kafka:9092"}, s.brokers)
	require.Equal(t, "redis:6379", s.redis.Addr)
	require.Equal(t, "postgres://u:p@db:5432/trackdesk?sslmode=disable", s.dbConn)
}

func TestSettingsFromConfig_TrustedProxies(t *testing.T) {
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "kafka"},
		Redis: config.RedisConfig{Host: "redis"},
		TrackDesk: config.TrackDeskConfig{
			TrustedProxies: []string{"10.0.0.0/8"},
		},
	}
	s := settingsFromConfig(cfg, "/srv/swagger.json")
	require.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}, s.opts.limits.TrustedProxies)
	require.Equal(t, []string{"kafka:9092"}, s.brokers)
}
