package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"tohomc/internal/app/service"
	"tohomc/internal/common"

	"github.com/go-chi/chi/v5"
)

// RecalculationQueue schedules a full rating recomputation on the worker.
type RecalculationQueue interface {
	EnqueueRecalculation(ctx context.Context) error
}

type AdminHandler struct {
	userService *service.UserService
	ratingJobs  RecalculationQueue
}

func NewAdminHandler(us *service.UserService, ratingJobs RecalculationQueue) *AdminHandler {
	return &AdminHandler{userService: us, ratingJobs: ratingJobs}
}

type SetRatingRequest struct {
	Rating *int `json:"rating"`
}

type ToggleAdminResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// RegisterRoutes expects to be mounted behind Authenticator and AdminOnly.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.listUsers)
	r.Delete("/users/{username}", h.deleteUser)
	r.Post("/users/{username}/toggle-admin", h.toggleAdmin)
	r.Put("/users/{username}/rating", h.setRating)
	r.Post("/ratings/recalculate", h.recalculate)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUsername(w, r)
	if !ok {
		return
	}
	users, err := h.userService.List(r.Context(), username)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUsername(w, r)
	if !ok {
		return
	}
	if err := h.userService.Delete(r.Context(), username, chi.URLParam(r, "username")); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) toggleAdmin(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUsername(w, r)
	if !ok {
		return
	}
	target := chi.URLParam(r, "username")
	role, err := h.userService.ToggleAdmin(r.Context(), username, target)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ToggleAdminResponse{Username: target, Role: role})
}

func (h *AdminHandler) setRating(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUsername(w, r)
	if !ok {
		return
	}
	var req SetRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if req.Rating == nil {
		common.RespondWithError(w, http.StatusBadRequest, "rating is required")
		return
	}

	if err := h.userService.SetRating(r.Context(), username, chi.URLParam(r, "username"), *req.Rating); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, req)
}

func (h *AdminHandler) recalculate(w http.ResponseWriter, r *http.Request) {
	if err := h.ratingJobs.EnqueueRecalculation(r.Context()); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
