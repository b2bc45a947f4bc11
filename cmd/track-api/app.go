package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	ordersapi "github.com/BearBump/TrackDesk/internal/api/orders_api"
	"github.com/BearBump/TrackDesk/internal/broker/kafka"
	"github.com/BearBump/TrackDesk/internal/broker/messages"
	"github.com/BearBump/TrackDesk/internal/metrics"
	"github.com/BearBump/TrackDesk/internal/services/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type trackAPIOpts struct {
	grpcAddr    string
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	limits ordersapi.Limits

	onListen func(grpcAddr, httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
}

type orderService interface {
	ordersapi.OrdersService
	ApplyScan(ctx context.Context, scan messages.ShipmentScan) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type trackAPIDeps struct {
	orders   orderService
	admins   ordersapi.AdminsService
	limiter  ordersapi.RateLimiter
	store    pinger
	consumer kafkaConsumer
}

func runTrackAPI(ctx context.Context, opts trackAPIOpts, deps trackAPIDeps) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	grpcLis, err := net.Listen("tcp", opts.grpcAddr)
	if err != nil {
		return err
	}
	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}

	if opts.onListen != nil {
		opts.onListen(grpcLis.Addr().String(), httpLis.Addr().String())
	}

	hs := health.NewServer()

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- runGRPCServer(ctx, grpcLis, hs)
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, httpLis, newRouter(opts, deps))
	}()

	consumerErr := make(chan error, 1)
	go func() {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		err := deps.consumer.Consume(ctx, scanHandler(ctx, deps.orders))
		if err != nil && ctx.Err() == nil {
			consumerErr <- errors.Wrap(err, "scan consumer")
		}
	}()

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-grpcErr:
	case runErr = <-httpErr:
	case runErr = <-consumerErr:
	}
	// серверы после остановки возвращают nil, причина в отменённом контексте
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return runErr
}

// scanHandler применяет скан с хаба. Битые и заведомо неприменимые сообщения
// пропускаются, ошибки хранилища останавливают чтение без коммита.
func scanHandler(ctx context.Context, svc orderService) kafka.Handler {
	return func(_ []byte, value []byte) error {
		var scan messages.ShipmentScan
		if err := json.Unmarshal(value, &scan); err != nil {
			metrics.ScansConsumedTotal.WithLabelValues("malformed").Inc()
			return errors.Wrapf(kafka.ErrSkipMessage, "decode scan: %v", err)
		}

		err := svc.ApplyScan(ctx, scan)
		switch {
		case err == nil:
			metrics.ScansConsumedTotal.WithLabelValues("applied").Inc()
			return nil
		case orders.IsPermanent(err):
			metrics.ScansConsumedTotal.WithLabelValues("rejected").Inc()
			return errors.Wrapf(kafka.ErrSkipMessage, "scan %s: %v", scan.TrackingNumber, err)
		default:
			metrics.ScansConsumedTotal.WithLabelValues("failed").Inc()
			return err
		}
	}
}

func runGRPCServer(ctx context.Context, lis net.Listener, hs *health.Server) error {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			s.Stop()
		}
		_ = lis.Close()
	}()

	slog.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.Serve(lis)
}

func newRouter(opts trackAPIOpts, deps trackAPIDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deps.store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.store.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	ordersapi.New(deps.orders, deps.admins, deps.limiter, opts.limits).Register(r)
	return r
}

func runHTTPServer(ctx context.Context, lis net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	err := srv.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
