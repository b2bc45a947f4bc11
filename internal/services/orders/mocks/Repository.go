package mocks

import (
	"context"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/storage/pgstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a testify mock of orders.Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) InsertOrder(ctx context.Context, o *models.Order, seed *models.TrackingEvent, out *pgstore.Outbox) error {
	args := m.Called(ctx, o, seed, out)
	return args.Error(0)
}

func (m *MockRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	var o *models.Order
	if v := args.Get(0); v != nil {
		o = v.(*models.Order)
	}
	return o, args.Error(1)
}

func (m *MockRepository) GetOrderByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error) {
	args := m.Called(ctx, trackingNumber)
	var o *models.Order
	if v := args.Get(0); v != nil {
		o = v.(*models.Order)
	}
	return o, args.Error(1)
}

func (m *MockRepository) ListOrders(ctx context.Context, f models.OrderFilter, limit, offset int) ([]*models.Order, int, error) {
	args := m.Called(ctx, f, limit, offset)
	var out []*models.Order
	if v := args.Get(0); v != nil {
		out = v.([]*models.Order)
	}
	return out, args.Int(1), args.Error(2)
}

func (m *MockRepository) CountOrdersByStatus(ctx context.Context) (map[models.Status]int, error) {
	args := m.Called(ctx)
	var out map[models.Status]int
	if v := args.Get(0); v != nil {
		out = v.(map[models.Status]int)
	}
	return out, args.Error(1)
}

func (m *MockRepository) AppendTrackingEvent(ctx context.Context, upd pgstore.TrackingUpdate) (*models.Order, error) {
	args := m.Called(ctx, upd)
	var o *models.Order
	if v := args.Get(0); v != nil {
		o = v.(*models.Order)
	}
	return o, args.Error(1)
}

func (m *MockRepository) ListTrackingHistory(ctx context.Context, orderID uuid.UUID) ([]*models.TrackingEvent, error) {
	args := m.Called(ctx, orderID)
	var out []*models.TrackingEvent
	if v := args.Get(0); v != nil {
		out = v.([]*models.TrackingEvent)
	}
	return out, args.Error(1)
}

func (m *MockRepository) DeleteOrder(ctx context.Context, id uuid.UUID, out *pgstore.Outbox) error {
	args := m.Called(ctx, id, out)
	return args.Error(0)
}
