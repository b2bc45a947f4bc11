package orders_api

import (
	"context"
	"net/netip"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/services/admins"
	"github.com/BearBump/TrackDesk/internal/services/orders"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrdersService interface {
	CreateOrder(ctx context.Context, in orders.CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, ref string) (*models.Order, error)
	ListOrders(ctx context.Context, in orders.ListInput) (*models.OrderPage, error)
	AppendTrackingUpdate(ctx context.Context, in orders.TrackingUpdateInput) (*models.Order, *models.TrackingEvent, error)
	GetTrackingHistory(ctx context.Context, orderID uuid.UUID) ([]*models.TrackingEvent, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	GetTrackingInfo(ctx context.Context, trackingNumber string) (*models.TrackingInfo, error)
	Stats(ctx context.Context) (*orders.Dashboard, error)
}

type AdminsService interface {
	List(ctx context.Context) ([]*models.AdminUser, error)
	Get(ctx context.Context, id uuid.UUID) (*models.AdminUser, error)
	Create(ctx context.Context, in admins.CreateInput) (*models.AdminUser, error)
	Update(ctx context.Context, id uuid.UUID, in admins.UpdateInput) (*models.AdminUser, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Login(ctx context.Context, email, password string) (string, *models.AdminUser, error)
	Logout(ctx context.Context, token string) error
	Session(ctx context.Context, token string) (*models.Session, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Limits struct {
	TrackPerMinute int64
	LoginPerMinute int64

	// TrustedProxies: от этих адресов принимаются X-Forwarded-For и X-Real-IP.
	TrustedProxies []netip.Prefix
}

// OrdersAPI: REST-слой поверх сервисов заказов и администраторов.
type OrdersAPI struct {
	orders  OrdersService
	admins  AdminsService
	limiter RateLimiter
	limits  Limits
}

// New собирает API. limiter может быть nil, тогда лимиты не применяются.
func New(o OrdersService, a AdminsService, limiter RateLimiter, limits Limits) *OrdersAPI {
	return &OrdersAPI{
		orders:  o,
		admins:  a,
		limiter: limiter,
		limits:  limits,
	}
}

// Register mounts the /api/v1 routes on r.
func (api *OrdersAPI) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/statuses", api.listStatuses)
		r.With(api.rateLimit("track", api.limits.TrackPerMinute)).
			Get("/track/{trackingNumber}", api.track)

		r.Route("/admin", func(r chi.Router) {
			r.With(api.rateLimit("login", api.limits.LoginPerMinute)).
				Post("/login", api.login)

			r.Group(func(r chi.Router) {
				r.Use(api.requireSession)

				r.Post("/logout", api.logout)
				r.Get("/me", api.me)
				r.Get("/dashboard", api.dashboard)

				r.Get("/orders", api.listOrders)
				r.Post("/orders", api.createOrder)
				r.Get("/orders/{id}", api.getOrder) // id или трек-номер
				r.Delete("/orders/{id}", api.deleteOrder)
				r.Get("/orders/{id}/history", api.history)
				r.Post("/orders/{id}/tracking", api.appendTracking)

				r.Get("/users", api.listUsers)
				r.Post("/users", api.createUser)
				r.Get("/users/{id}", api.getUser)
				r.Put("/users/{id}", api.updateUser)
				r.Delete("/users/{id}", api.deleteUser)
			})
		})
	})
}
