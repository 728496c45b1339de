package api

import (
	"chat-sync/auth"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/projection"
	"chat-sync/services"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

type newConversationRequest struct {
	Members       []string `json:"members" validate:"required,min=1,dive,e164"`
	Name          string   `json:"name" validate:"max=128"`
	Topic         string   `json:"topic" validate:"max=512"`
	EncryptedText []byte   `json:"encrypted_text"`
}

type postMessageRequest struct {
	EncryptedText []byte `json:"encrypted_text"`
}

type ConversationHandler struct {
	log     *slog.Logger
	service services.IChatService
}

func NewConversationHandler(log *slog.Logger, service services.IChatService) *ConversationHandler {
	return &ConversationHandler{log: log, service: service}
}

// List handles GET /conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListConversations(r.Context(), UserFrom(r.Context()))
	if err != nil {
		fail(w, h.log, err)
		return
	}
	if views == nil {
		views = []projection.ConversationView{}
	}
	writeJSON(w, http.StatusOK, views)
}

// Get handles GET /conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	view, err := h.service.GetConversation(r.Context(), UserFrom(r.Context()), id)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Create handles POST /conversations/new
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req newConversationRequest
	if err := decode(r, &req); err != nil {
		fail(w, h.log, err)
		return
	}
	if err := auth.ValidateRequest(req); err != nil {
		fail(w, h.log, err)
		return
	}
	view, err := h.service.CreateConversation(r.Context(), services.NewConversationCommand{
		Initiator: UserFrom(r.Context()),
		Members: lo.Map(req.Members, func(member string, _ int) domain.UserID {
			return domain.UserID(member)
		}),
		Name:          req.Name,
		Topic:         req.Topic,
		EncryptedText: req.EncryptedText,
	})
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// PostMessage handles POST /conversations/{id}/message/new
func (h *ConversationHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	var req postMessageRequest
	if err := decode(r, &req); err != nil {
		fail(w, h.log, err)
		return
	}
	message, err := h.service.PostMessage(r.Context(), services.PostMessageCommand{
		Sender:        UserFrom(r.Context()),
		Conversation:  id,
		EncryptedText: req.EncryptedText,
	})
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

// Messages handles GET /conversations/{id}/messages?from&to&last
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	window, err := parseWindow(r)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	messages, err := h.service.GetMessages(r.Context(), UserFrom(r.Context()), id, window)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// SetName handles PUT /conversations/{id}/name/{name}
func (h *ConversationHandler) SetName(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	name, err := pathText(r, "name")
	if err != nil {
		fail(w, h.log, err)
		return
	}
	if err := h.service.SetName(r.Context(), UserFrom(r.Context()), id, name); err != nil {
		fail(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetTopic handles PUT /conversations/{id}/topic/{topic}
func (h *ConversationHandler) SetTopic(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	topic, err := pathText(r, "topic")
	if err != nil {
		fail(w, h.log, err)
		return
	}
	if err := h.service.SetTopic(r.Context(), UserFrom(r.Context()), id, topic); err != nil {
		fail(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invite handles PUT /conversations/{id}/invite/{userId}
func (h *ConversationHandler) Invite(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	invited, err := auth.ParsePhone(chi.URLParam(r, "userId"))
	if err != nil {
		fail(w, h.log, err)
		return
	}
	invitation, err := h.service.Invite(r.Context(), UserFrom(r.Context()), id, invited)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, invitation)
}

// Resolve handles PUT /conversations/{id}/invite/resolve/{decision}
// where decision is accept or decline.
func (h *ConversationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	var accepted bool
	switch decision := chi.URLParam(r, "decision"); decision {
	case "accept":
		accepted = true
	case "decline":
	default:
		fail(w, h.log, fmt.Errorf("%w: unknown decision %q", errors.ErrInvalidRequest, decision))
		return
	}
	if err := h.service.ResolveInvitation(r.Context(), UserFrom(r.Context()), id, accepted); err != nil {
		fail(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leave handles DELETE /conversations/{id}/leave
func (h *ConversationHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	if err := h.service.Leave(r.Context(), UserFrom(r.Context()), id); err != nil {
		fail(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func conversationID(r *http.Request) (domain.ConversationID, error) {
	return domain.ParseConversationID(chi.URLParam(r, "id"))
}

// pathText returns a free text path parameter, unescaped.
func pathText(r *http.Request, key string) (string, error) {
	text, err := url.PathUnescape(chi.URLParam(r, key))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", errors.ErrInvalidRequest, key, err)
	}
	return text, nil
}

// parseWindow reads the optional from and to bounds (RFC 3339) and the
// last-N count of a history query.
func parseWindow(r *http.Request) (projection.Window, error) {
	var window projection.Window
	query := r.URL.Query()
	for name, bound := range map[string]**time.Time{"from": &window.From, "to": &window.To} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return projection.Window{}, fmt.Errorf("%w: %s must be RFC 3339: %v", errors.ErrInvalidRequest, name, err)
		}
		*bound = &at
	}
	if raw := query.Get("last"); raw != "" {
		last, err := strconv.Atoi(raw)
		if err != nil || last < 0 {
			return projection.Window{}, fmt.Errorf("%w: last must be a positive integer", errors.ErrInvalidRequest)
		}
		window.Last = last
	}
	return window, nil
}
