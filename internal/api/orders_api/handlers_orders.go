package orders_api

import (
	"net/http"
	"strconv"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/services/orders"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type statusView struct {
	Status   models.Status      `json:"status"`
	Class    models.StatusClass `json:"class"`
	Color    string             `json:"color"`
	Terminal bool               `json:"terminal"`
}

func (api *OrdersAPI) listStatuses(w http.ResponseWriter, r *http.Request) {
	out := make([]statusView, 0, len(models.Statuses))
	for _, s := range models.Statuses {
		out = append(out, statusView{
			Status:   s,
			Class:    s.Class(),
			Color:    s.Class().Color(),
			Terminal: s.Terminal(),
		})
	}
	writeData(w, http.StatusOK, out)
}

func (api *OrdersAPI) track(w http.ResponseWriter, r *http.Request) {
	info, err := api.orders.GetTrackingInfo(r.Context(), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, info)
}

func (api *OrdersAPI) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := api.orders.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

func (api *OrdersAPI) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := orders.ListInput{
		Status: q.Get("status"),
		Query:  q.Get("q"),
		Page:   1,
	}
	if p := q.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			writeError(w, r, models.NewValidationError("page", "must be a positive integer"))
			return
		}
		in.Page = n
	}

	page, err := api.orders.ListOrders(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, page)
}

func (api *OrdersAPI) createOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.CreateOrderInput
	if !decodeJSON(w, r, &in) {
		return
	}
	o, err := api.orders.CreateOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, o)
}

func (api *OrdersAPI) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := api.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

func (api *OrdersAPI) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := api.orders.DeleteOrder(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (api *OrdersAPI) history(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	// 404 для несуществующего заказа, а не пустой список
	if _, err := api.orders.GetOrder(r.Context(), id.String()); err != nil {
		writeError(w, r, err)
		return
	}
	events, err := api.orders.GetTrackingHistory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, events)
}

type trackingRequest struct {
	Status          string  `json:"status"`
	Location        *string `json:"location"`
	Description     *string `json:"description"`
	ExpectedVersion *int64  `json:"expected_version"`
	Reopen          bool    `json:"reopen"`
}

type trackingResponse struct {
	Order *models.Order         `json:"order"`
	Event *models.TrackingEvent `json:"event"`
}

func (api *OrdersAPI) appendTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req trackingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, ev, err := api.orders.AppendTrackingUpdate(r.Context(), orders.TrackingUpdateInput{
		OrderID:         id,
		Status:          req.Status,
		Location:        req.Location,
		Description:     req.Description,
		ExpectedVersion: req.ExpectedVersion,
		Reopen:          req.Reopen,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, trackingResponse{Order: o, Event: ev})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeFail(w, http.StatusBadRequest, codeBadRequest, "Invalid id", nil)
		return uuid.Nil, false
	}
	return id, true
}
