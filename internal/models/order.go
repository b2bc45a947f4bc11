package models

import (
	"time"

	"github.com/google/uuid"
)

type Party struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type Order struct {
	ID             uuid.UUID `json:"id"`
	TrackingNumber string    `json:"tracking_number"`
	Status         Status    `json:"status"`

	ProductName        string   `json:"product_name"`
	Weight             float64  `json:"weight"`
	Dimensions         *string  `json:"dimensions"`
	PackageValue       *float64 `json:"package_value"`
	PackageDescription *string  `json:"package_description"`

	ShippingCompany string     `json:"shipping_company"`
	ShippingMethod  string     `json:"shipping_method"`
	DeliveryDate    *time.Time `json:"delivery_date"`
	Currency        string     `json:"currency"`
	ShippingCost    float64    `json:"shipping_cost"`
	TotalAmount     float64    `json:"total_amount"`

	Sender    Party `json:"sender"`
	Recipient Party `json:"recipient"`

	OfficerName *string `json:"officer_name"`
	OfficerID   *string `json:"officer_id"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TrackingEvent struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	Status      Status    `json:"status"`
	Location    *string   `json:"location"`
	Description *string   `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

type OrderFilter struct {
	Status *Status
	Query  string
}

type OrderPage struct {
	Orders     []*Order `json:"orders"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
}

type OrderStats struct {
	Total     int            `json:"total"`
	Delivered int            `json:"delivered"`
	InTransit int            `json:"in_transit"`
	Pending   int            `json:"pending"`
	ByStatus  map[Status]int `json:"by_status"`
}

// TrackingInfo: то, что видит клиент на публичной странице трекинга.
type TrackingInfo struct {
	Order       *Order           `json:"order"`
	History     []*TrackingEvent `json:"history"`
	StatusClass StatusClass      `json:"status_class"`
	StatusColor string           `json:"status_color"`
	CreatedOn   string           `json:"created_on"`
	DeliveryOn  string           `json:"delivery_on"`
	LastUpdate  string           `json:"last_update"`
}

func (o *Order) ComputeTotal() float64 {
	total := o.ShippingCost
	if o.PackageValue != nil {
		total += *o.PackageValue
	}
	return RoundMoney(total)
}
