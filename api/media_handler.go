package api

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/services"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// uploadField is the multipart form field carrying the file.
const uploadField = "file"

// multipartOverhead covers the boundaries and part headers around the file.
const multipartOverhead = 64 << 10

type MediaHandler struct {
	log       *slog.Logger
	media     services.IMediaService
	chat      services.IChatService
	maxUpload int64
}

func NewMediaHandler(log *slog.Logger, media services.IMediaService, chat services.IChatService, maxUpload int64) *MediaHandler {
	return &MediaHandler{log: log, media: media, chat: chat, maxUpload: maxUpload}
}

// Attach handles POST /media/attach/{convId}/{msgId}
func (h *MediaHandler) Attach(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversation, err := domain.ParseConversationID(chi.URLParam(r, "convId"))
	if err != nil {
		fail(w, h.log, err)
		return
	}
	message, err := domain.ParseMessageID(chi.URLParam(r, "msgId"))
	if err != nil {
		fail(w, h.log, err)
		return
	}
	filename, data, err := readUpload(w, r, h.maxUpload)
	if err != nil {
		fail(w, h.log, err)
		return
	}

	media, err := h.media.Store(ctx, filename, data)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	if err := h.chat.AttachMedia(ctx, UserFrom(ctx), conversation, message, media); err != nil {
		h.discard(ctx, media.StoreID)
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, media)
}

// Get handles GET /media/{storeId}
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.media.Get(r.Context(), domain.StoreID(chi.URLParam(r, "storeId")))
	if err != nil {
		fail(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// discard removes a blob nothing references.
func (h *MediaHandler) discard(ctx context.Context, id domain.StoreID) {
	if err := h.media.Delete(ctx, id); err != nil {
		h.log.Warn("Orphan media left in store", "store_id", id, "error", err)
	}
}

// readUpload reads the uploaded file of a multipart request, refusing bodies
// larger than limit before they are buffered.
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, fmt.Errorf("%w: body over %d bytes", errors.ErrMediaTooLarge, limit)
		}
		return "", nil, fmt.Errorf("%w: %s: %v", errors.ErrInvalidRequest, uploadField, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	return header.Filename, data, nil
}
