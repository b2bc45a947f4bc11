package orders

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/BearBump/TrackDesk/internal/broker/messages"
	"github.com/BearBump/TrackDesk/internal/cache"
	"github.com/BearBump/TrackDesk/internal/metrics"
	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/storage/pgstore"
	"github.com/BearBump/TrackDesk/internal/validation"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	defaultPageSize      = 10
	dashboardRecentLimit = 10
	maxNumberAttempts    = 10

	seedLocation    = "Order created"
	seedDescription = "Order has been created and is pending processing"
)

type Repository interface {
	InsertOrder(ctx context.Context, o *models.Order, seed *models.TrackingEvent, out *pgstore.Outbox) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error)
	ListOrders(ctx context.Context, f models.OrderFilter, limit, offset int) ([]*models.Order, int, error)
	CountOrdersByStatus(ctx context.Context) (map[models.Status]int, error)
	AppendTrackingEvent(ctx context.Context, upd pgstore.TrackingUpdate) (*models.Order, error)
	ListTrackingHistory(ctx context.Context, orderID uuid.UUID) ([]*models.TrackingEvent, error)
	DeleteOrder(ctx context.Context, id uuid.UUID, out *pgstore.Outbox) error
}

type Config struct {
	PageSize         int
	TrackingCacheTTL time.Duration
	EventsTopic      string
}

type Service struct {
	repo  Repository
	cache cache.BytesCache
	cfg   Config
	gen   *Generator
	now   func() time.Time
}

func New(repo Repository, c cache.BytesCache, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.EventsTopic == "" {
		cfg.EventsTopic = "orders.events"
	}
	return &Service{
		repo:  repo,
		cache: c,
		cfg:   cfg,
		gen:   NewGenerator(nil),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithGenerator(g *Generator) *Service {
	s.gen = g
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) PageSize() int { return s.cfg.PageSize }

// CreateOrder validates the input and stores a Pending order with its seed
// history event. The tracking number is generated here; on a collision the
// whole insert is retried with a fresh number.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	o := in.toOrder(s.now())
	loc, desc := seedLocation, seedDescription
	seed := &models.TrackingEvent{
		ID:          uuid.New(),
		OrderID:     o.ID,
		Status:      models.StatusPending,
		Location:    &loc,
		Description: &desc,
		Timestamp:   o.CreatedAt,
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		o.TrackingNumber = s.gen.Next()
		out, err := s.outbox(messages.OrderEvent{
			Type:           messages.OrderCreated,
			OrderID:        o.ID,
			TrackingNumber: o.TrackingNumber,
			Status:         o.Status,
			Version:        o.Version,
			OccurredAt:     o.CreatedAt,
		})
		if err != nil {
			return nil, err
		}

		err = s.repo.InsertOrder(ctx, o, seed, out)
		if errors.Is(err, models.ErrDuplicateTrackingNumber) {
			metrics.TrackingNumberCollisionsTotal.Inc()
			continue
		}
		if err != nil {
			metrics.OperationErrorsTotal.WithLabelValues("create_order").Inc()
			return nil, err
		}
		metrics.OrdersCreatedTotal.Inc()
		return o, nil
	}

	metrics.OperationErrorsTotal.WithLabelValues("create_order").Inc()
	return nil, models.NewStoreError("create order", errors.Errorf("no free tracking number after %d attempts", maxNumberAttempts))
}

// GetOrder finds an order by its id or, when ref is not a UUID, by tracking number.
func (s *Service) GetOrder(ctx context.Context, ref string) (*models.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, models.NewValidationError("ref", "is required")
	}
	if id, err := uuid.Parse(ref); err == nil {
		return s.repo.GetOrderByID(ctx, id)
	}
	return s.repo.GetOrderByTrackingNumber(ctx, ref)
}

func (s *Service) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.repo.GetOrderByID(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, in ListInput) (*models.OrderPage, error) {
	var f models.OrderFilter
	if st := strings.TrimSpace(in.Status); st != "" && !strings.EqualFold(st, "all") {
		parsed, ok := models.ParseStatus(st)
		if !ok {
			return nil, models.NewValidationError("status", "unknown status")
		}
		f.Status = &parsed
	}
	f.Query = strings.TrimSpace(in.Query)

	page := in.Page
	if page < 1 {
		page = 1
	}
	size := s.cfg.PageSize

	items, total, err := s.repo.ListOrders(ctx, f, size, (page-1)*size)
	if err != nil {
		return nil, err
	}
	return &models.OrderPage{
		Orders:     items,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: (total + size - 1) / size,
	}, nil
}

// AppendTrackingUpdate records a status change. The transition is checked
// against the current status and the write is rejected with models.ErrConflict
// if the order changed concurrently.
func (s *Service) AppendTrackingUpdate(ctx context.Context, in TrackingUpdateInput) (*models.Order, *models.TrackingEvent, error) {
	raw := strings.TrimSpace(in.Status)
	if raw == "" {
		return nil, nil, models.NewValidationError("status", "is required")
	}
	st, ok := models.ParseStatus(raw)
	if !ok {
		return nil, nil, models.NewValidationError("status", "unknown status")
	}

	cur, err := s.repo.GetOrderByID(ctx, in.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if in.ExpectedVersion != nil && *in.ExpectedVersion != cur.Version {
		return nil, nil, errors.Wrapf(models.ErrConflict, "order %s is at version %d, not %d", cur.ID, cur.Version, *in.ExpectedVersion)
	}
	if !models.CanTransition(cur.Status, st, in.Reopen) {
		return nil, nil, &models.InvalidTransitionError{From: cur.Status, To: st}
	}

	ev := &models.TrackingEvent{
		ID:          uuid.New(),
		OrderID:     cur.ID,
		Status:      st,
		Location:    optional(in.Location),
		Description: optional(in.Description),
		Timestamp:   s.now(),
	}
	out, err := s.outbox(messages.OrderEvent{
		Type:           messages.OrderStatusChanged,
		OrderID:        cur.ID,
		TrackingNumber: cur.TrackingNumber,
		Status:         st,
		PreviousStatus: cur.Status,
		Location:       ev.Location,
		Description:    ev.Description,
		Version:        cur.Version + 1,
		OccurredAt:     ev.Timestamp,
	})
	if err != nil {
		return nil, nil, err
	}

	updated, err := s.repo.AppendTrackingEvent(ctx, pgstore.TrackingUpdate{
		FromVersion: cur.Version,
		Event:       ev,
		Outbox:      out,
	})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("append_tracking_update").Inc()
		return nil, nil, err
	}

	s.invalidate(ctx, cur.TrackingNumber)
	metrics.StatusUpdatesTotal.WithLabelValues(string(st)).Inc()
	return updated, ev, nil
}

func (s *Service) GetTrackingHistory(ctx context.Context, orderID uuid.UUID) ([]*models.TrackingEvent, error) {
	return s.repo.ListTrackingHistory(ctx, orderID)
}

func (s *Service) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	cur, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return err
	}
	out, err := s.outbox(messages.OrderEvent{
		Type:           messages.OrderDeleted,
		OrderID:        cur.ID,
		TrackingNumber: cur.TrackingNumber,
		Status:         cur.Status,
		Version:        cur.Version,
		OccurredAt:     s.now(),
	})
	if err != nil {
		return err
	}
	if err := s.repo.DeleteOrder(ctx, id, out); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("delete_order").Inc()
		return err
	}
	s.invalidate(ctx, cur.TrackingNumber)
	metrics.OrdersDeletedTotal.Inc()
	return nil
}

// GetTrackingInfo is the public lookup by tracking number. The result is
// cached best-effort; cache failures fall through to the store.
func (s *Service) GetTrackingInfo(ctx context.Context, trackingNumber string) (*models.TrackingInfo, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, models.NewValidationError("tracking_number", "is required")
	}

	key := trackingKey(trackingNumber)
	if s.cacheEnabled() {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var info models.TrackingInfo
			if json.Unmarshal(b, &info) == nil {
				metrics.TrackingLookupsTotal.WithLabelValues("hit").Inc()
				return &info, nil
			}
		}
	}
	metrics.TrackingLookupsTotal.WithLabelValues("miss").Inc()

	o, err := s.repo.GetOrderByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	hist, err := s.repo.ListTrackingHistory(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	info := models.NewTrackingInfo(o, hist)

	if s.cacheEnabled() {
		if b, err := json.Marshal(info); err == nil {
			_ = s.cache.Set(ctx, key, b, s.cfg.TrackingCacheTTL)
		}
	}
	return info, nil
}

func (s *Service) Stats(ctx context.Context) (*Dashboard, error) {
	counts, err := s.repo.CountOrdersByStatus(ctx)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.repo.ListOrders(ctx, models.OrderFilter{}, dashboardRecentLimit, 0)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Stats: models.NewOrderStats(counts), Recent: recent}, nil
}

func (s *Service) outbox(ev messages.OrderEvent) (*pgstore.Outbox, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrap(err, "marshal order event")
	}
	return &pgstore.Outbox{Topic: s.cfg.EventsTopic, Key: ev.OrderID.String(), Payload: b}, nil
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.cfg.TrackingCacheTTL > 0
}

func (s *Service) invalidate(ctx context.Context, trackingNumber string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, trackingKey(trackingNumber))
}

func trackingKey(trackingNumber string) string {
	return "tracking:" + trackingNumber + ":info"
}
