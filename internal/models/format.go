package models

import (
	"math"
	"time"
	_ "time/tzdata"
)

const notAvailable = "N/A"

// Даты показываем по филиппинскому времени, как и в веб-консоли.
var manila = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		return time.FixedZone("PHT", 8*60*60)
	}
	return loc
}()

func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return notAvailable
	}
	return t.In(manila).Format("January 2, 2006")
}

func FormatDateTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return notAvailable
	}
	return t.In(manila).Format("January 2, 2006 03:04 PM")
}

// NewOrderStats folds per-status counts into the dashboard buckets.
func NewOrderStats(byStatus map[Status]int) OrderStats {
	st := OrderStats{ByStatus: make(map[Status]int, len(byStatus))}
	for s, n := range byStatus {
		st.ByStatus[s] = n
		st.Total += n
		switch s {
		case StatusDelivered:
			st.Delivered += n
		case StatusInTransit, StatusOutForDelivery:
			st.InTransit += n
		case StatusPending, StatusProcessing, StatusPackageReceived:
			st.Pending += n
		}
	}
	return st
}

func NewTrackingInfo(o *Order, history []*TrackingEvent) *TrackingInfo {
	if history == nil {
		history = []*TrackingEvent{}
	}
	class := o.Status.Class()
	return &TrackingInfo{
		Order:       o,
		History:     history,
		StatusClass: class,
		StatusColor: class.Color(),
		CreatedOn:   FormatDate(&o.CreatedAt),
		DeliveryOn:  FormatDate(o.DeliveryDate),
		LastUpdate:  FormatDateTime(&o.UpdatedAt),
	}
}
