package orders_api

import (
	"net/http"
	"strings"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/services/admins"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string            `json:"token"`
	Admin *models.AdminUser `json:"admin"`
}

func (api *OrdersAPI) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ve := &models.ValidationError{}
	if strings.TrimSpace(req.Email) == "" {
		ve.Add("email", "is required")
	}
	if req.Password == "" {
		ve.Add("password", "is required")
	}
	if len(ve.Fields) > 0 {
		writeError(w, r, ve)
		return
	}

	token, a, err := api.admins.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, loginResponse{Token: token, Admin: a})
}

func (api *OrdersAPI) logout(w http.ResponseWriter, r *http.Request) {
	if err := api.admins.Logout(r.Context(), tokenFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"logged_out": true})
}

func (api *OrdersAPI) me(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, sessionFrom(r.Context()))
}

func (api *OrdersAPI) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := api.admins.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (api *OrdersAPI) createUser(w http.ResponseWriter, r *http.Request) {
	var in admins.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	a, err := api.admins.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, a)
}

func (api *OrdersAPI) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := api.admins.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

func (api *OrdersAPI) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in admins.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	a, err := api.admins.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

func (api *OrdersAPI) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := api.admins.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
