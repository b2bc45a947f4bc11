package orders

import (
	"strings"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/google/uuid"
)

type PartyInput struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
}

type CreateOrderInput struct {
	ProductName        string   `json:"product_name" validate:"required"`
	Weight             float64  `json:"weight" validate:"gt=0"`
	Dimensions         *string  `json:"dimensions"`
	PackageValue       *float64 `json:"package_value" validate:"omitempty,gte=0"`
	PackageDescription *string  `json:"package_description"`

	ShippingCompany string   `json:"shipping_company" validate:"required"`
	ShippingMethod  string   `json:"shipping_method" validate:"required"`
	DeliveryDate    *string  `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	Currency        string   `json:"currency" validate:"required,iso4217"`
	ShippingCost    *float64 `json:"shipping_cost" validate:"required,gte=0"`

	Sender    PartyInput `json:"sender"`
	Recipient PartyInput `json:"recipient"`

	OfficerName *string `json:"officer_name"`
	OfficerID   *string `json:"officer_id"`
}

func (in *CreateOrderInput) normalize() {
	in.ProductName = strings.TrimSpace(in.ProductName)
	in.ShippingCompany = strings.TrimSpace(in.ShippingCompany)
	in.ShippingMethod = strings.TrimSpace(in.ShippingMethod)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Dimensions = optional(in.Dimensions)
	in.PackageDescription = optional(in.PackageDescription)
	in.DeliveryDate = optional(in.DeliveryDate)
	in.OfficerName = optional(in.OfficerName)
	in.OfficerID = optional(in.OfficerID)
	for _, p := range []*PartyInput{&in.Sender, &in.Recipient} {
		p.Name = strings.TrimSpace(p.Name)
		p.Phone = strings.TrimSpace(p.Phone)
		p.Address = strings.TrimSpace(p.Address)
	}
}

func (in *CreateOrderInput) toOrder(now time.Time) *models.Order {
	o := &models.Order{
		ID:                 uuid.New(),
		Status:             models.StatusPending,
		ProductName:        in.ProductName,
		Weight:             in.Weight,
		Dimensions:         in.Dimensions,
		PackageValue:       in.PackageValue,
		PackageDescription: in.PackageDescription,
		ShippingCompany:    in.ShippingCompany,
		ShippingMethod:     in.ShippingMethod,
		Currency:           in.Currency,
		Sender:             models.Party(in.Sender),
		Recipient:          models.Party(in.Recipient),
		OfficerName:        in.OfficerName,
		OfficerID:          in.OfficerID,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if in.ShippingCost != nil {
		o.ShippingCost = models.RoundMoney(*in.ShippingCost)
	}
	if in.PackageValue != nil {
		v := models.RoundMoney(*in.PackageValue)
		o.PackageValue = &v
	}
	if in.DeliveryDate != nil {
		// формат уже проверен валидатором
		if d, err := time.Parse(time.DateOnly, *in.DeliveryDate); err == nil {
			o.DeliveryDate = &d
		}
	}
	o.TotalAmount = o.ComputeTotal()
	return o
}

type TrackingUpdateInput struct {
	OrderID     uuid.UUID
	Status      string
	Location    *string
	Description *string

	// ExpectedVersion, если задан, должен совпасть с текущей версией заказа.
	ExpectedVersion *int64
	Reopen          bool
}

type ListInput struct {
	Status string
	Query  string
	Page   int
}

type Dashboard struct {
	Stats  models.OrderStats `json:"stats"`
	Recent []*models.Order   `json:"recent"`
}

// optional обрезает пробелы; пустая строка становится nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
