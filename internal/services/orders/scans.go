package orders

import (
	"context"
	"errors"

	"github.com/BearBump/TrackDesk/internal/broker/messages"
	"github.com/BearBump/TrackDesk/internal/models"
)

const scanConflictRetries = 3

// ApplyScan applies a hub scan to the order with the scanned tracking number.
// A concurrent admin edit is retried against the fresh order state.
func (s *Service) ApplyScan(ctx context.Context, scan messages.ShipmentScan) error {
	if scan.TrackingNumber == "" {
		return models.NewValidationError("tracking_number", "is required")
	}

	var err error
	for i := 0; i < scanConflictRetries; i++ {
		var o *models.Order
		o, err = s.repo.GetOrderByTrackingNumber(ctx, scan.TrackingNumber)
		if err != nil {
			return err
		}
		_, _, err = s.AppendTrackingUpdate(ctx, TrackingUpdateInput{
			OrderID:         o.ID,
			Status:          scan.Status,
			Location:        scan.Location,
			Description:     scan.Description,
			ExpectedVersion: &o.Version,
		})
		if !errors.Is(err, models.ErrConflict) {
			return err
		}
	}
	return err
}

// IsPermanent сообщает, что повтор того же сообщения даст ту же ошибку.
func IsPermanent(err error) bool {
	var ve *models.ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrInvalidTransition) ||
		errors.Is(err, models.ErrConflict)
}
