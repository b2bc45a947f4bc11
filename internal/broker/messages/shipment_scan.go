package messages

import "time"

// ShipmentScan приходит от сканеров на хабах: посылку отсканировали с новым статусом.
type ShipmentScan struct {
	TrackingNumber string    `json:"tracking_number"`
	Status         string    `json:"status"`
	Location       *string   `json:"location,omitempty"`
	Description    *string   `json:"description,omitempty"`
	ScannedAt      time.Time `json:"scanned_at"`
}
