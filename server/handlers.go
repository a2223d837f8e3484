package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"audiohub/config"
	"audiohub/logger"
	"audiohub/model"
	"audiohub/repository"
	"audiohub/storage"
)

// APIHandler handles all API requests.
type APIHandler struct {
	audioRepo repository.AudioFileRepository
	userRepo  repository.UserRepository
	store     storage.ObjectStore
	cfg       *config.Config
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	audioRepo repository.AudioFileRepository,
	userRepo repository.UserRepository,
	store storage.ObjectStore,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		audioRepo: audioRepo,
		userRepo:  userRepo,
		store:     store,
		cfg:       cfg,
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", logger.ErrorField(err))
	}
}

// writeError maps the error taxonomy to HTTP responses: validation errors
// become 400, missing records 404, everything else 500.
func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	var ve *repository.ValidationError
	switch {
	case errors.As(err, &ve):
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": ve.Reason, "field": ve.Field})
	case errors.Is(err, repository.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "not found"})
	default:
		logger.Error("Internal error handling request", logger.ErrorField(err))
		h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "internal server error"})
	}
}

// mediaURL resolves the absolute locator for a stored binary at response
// time. An empty object path yields nil (no binary attached).
func (h *APIHandler) mediaURL(objectPath string) interface{} {
	if objectPath == "" {
		return nil
	}
	return strings.TrimRight(h.cfg.PublicBaseURL, "/") + "/media/" + objectPath
}

// audioFileJSON builds the API representation of an audio file. file_size
// and file_size_display always derive from the same stored value.
func (h *APIHandler) audioFileJSON(f *model.AudioFile) map[string]interface{} {
	var duration interface{}
	if f.Duration > 0 {
		duration = f.Duration
	}
	return map[string]interface{}{
		"id":                f.ID,
		"title":             f.Title,
		"description":       f.Description,
		"audio_url":         h.mediaURL(f.FilePath),
		"duration":          duration,
		"file_size":         f.FileSize,
		"file_size_display": f.FileSizeDisplay(),
		"uploaded_at":       f.UploadedAt,
		"updated_at":        f.UpdatedAt,
		"is_active":         f.IsActive,
	}
}

// audioFileListJSON builds the array representation used by listings.
func (h *APIHandler) audioFileListJSON(files []*model.AudioFile) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(files))
	for _, f := range files {
		out = append(out, h.audioFileJSON(f))
	}
	return out
}

// userJSON builds the basic API representation of a user.
func (h *APIHandler) userJSON(u *model.User) map[string]interface{} {
	return map[string]interface{}{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"bio":        u.Bio,
		"phone":      u.Phone,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	}
}
