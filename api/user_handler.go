package api

import (
	"chat-sync/auth"
	"chat-sync/domain"
	"chat-sync/services"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	log       *slog.Logger
	service   services.IUserService
	maxUpload int64
}

func NewUserHandler(log *slog.Logger, service services.IUserService, maxUpload int64) *UserHandler {
	return &UserHandler{log: log, service: service, maxUpload: maxUpload}
}

// GetProfile handles GET /user/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetProfile(r.Context(), UserFrom(r.Context()))
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfile handles POST /user/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update domain.ProfileUpdate
	if err := decode(r, &update); err != nil {
		fail(w, h.log, err)
		return
	}
	profile, err := h.service.UpdateProfile(r.Context(), UserFrom(r.Context()), update)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// SetPicture handles POST /user/profile/picture
func (h *UserHandler) SetPicture(w http.ResponseWriter, r *http.Request) {
	filename, data, err := readUpload(w, r, h.maxUpload)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	media, err := h.service.SetProfilePicture(r.Context(), UserFrom(r.Context()), filename, data)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, media)
}

// ClearPicture handles DELETE /user/profile/picture
func (h *UserHandler) ClearPicture(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearProfilePicture(r.Context(), UserFrom(r.Context())); err != nil {
		fail(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetOptions handles PUT /user/options
func (h *UserHandler) SetOptions(w http.ResponseWriter, r *http.Request) {
	var options domain.Options
	if err := decode(r, &options); err != nil {
		fail(w, h.log, err)
		return
	}
	if err := h.service.SetOptions(r.Context(), UserFrom(r.Context()), options); err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

// Contacts handles GET /user/contacts
func (h *UserHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.service.Contacts(r.Context(), UserFrom(r.Context()))
	if err != nil {
		fail(w, h.log, err)
		return
	}
	if contacts == nil {
		contacts = []domain.UserID{}
	}
	writeJSON(w, http.StatusOK, contacts)
}

// AddContact handles PUT /user/contacts/{phone}
func (h *UserHandler) AddContact(w http.ResponseWriter, r *http.Request) {
	contact, err := auth.ParsePhone(chi.URLParam(r, "phone"))
	if err != nil {
		fail(w, h.log, err)
		return
	}
	if err := h.service.AddContact(r.Context(), UserFrom(r.Context()), contact); err != nil {
		fail(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveContact handles DELETE /user/contacts/{phone}
func (h *UserHandler) RemoveContact(w http.ResponseWriter, r *http.Request) {
	contact, err := auth.ParsePhone(chi.URLParam(r, "phone"))
	if err != nil {
		fail(w, h.log, err)
		return
	}
	if err := h.service.RemoveContact(r.Context(), UserFrom(r.Context()), contact); err != nil {
		fail(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
