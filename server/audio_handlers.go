package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"audiohub/cache"
	"audiohub/logger"
	"audiohub/model"
	"audiohub/repository"
	"audiohub/storage"

	"github.com/gorilla/mux"
)

const maxUploadMemory = 32 << 20 // 32MB held in memory while parsing multipart forms

// activeAudioForUser returns a user's active audio files, trying the Redis
// cache first and falling back to the repository. Cache failures are soft.
func (h *APIHandler) activeAudioForUser(ctx context.Context, userID int64) ([]*model.AudioFile, error) {
	if files, err := cache.GetUserAudioList(ctx, userID); err == nil {
		return files, nil
	}

	files, err := h.audioRepo.GetActiveAudioFiles(userID)
	if err != nil {
		return nil, err
	}

	if err := cache.SetUserAudioList(ctx, userID, files); err != nil {
		logger.Debug("Skipping audio list cache write", logger.ErrorField(err))
	}
	return files, nil
}

// invalidateUserAudio drops the cached listing after a write. Failures are
// logged and ignored; the TTL bounds staleness.
func (h *APIHandler) invalidateUserAudio(ctx context.Context, userID int64) {
	if err := cache.InvalidateUserAudio(ctx, userID); err != nil {
		logger.Debug("Skipping audio cache invalidation", logger.ErrorField(err))
	}
}

// ListAudioFilesHandler handles GET /api/audio with an optional user_id
// owner filter. Only active records are returned, newest upload first.
func (h *APIHandler) ListAudioFilesHandler(w http.ResponseWriter, r *http.Request) {
	userIDParam := r.URL.Query().Get("user_id")
	if userIDParam == "" {
		files, err := h.audioRepo.GetActiveAudioFiles(0)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, h.audioFileListJSON(files))
		return
	}

	userID, err := strconv.ParseInt(userIDParam, 10, 64)
	if err != nil || userID <= 0 {
		h.writeError(w, repository.NewValidationError("user_id", "user_id must be a positive integer"))
		return
	}

	files, err := h.activeAudioForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.audioFileListJSON(files))
}

// GetAudioFileHandler handles GET /api/audio/{id}. Soft-deleted records are
// still returned, with is_active=false.
func (h *APIHandler) GetAudioFileHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeError(w, repository.ErrNotFound)
		return
	}

	f, err := h.audioRepo.GetAudioFileByID(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.audioFileJSON(f))
}

// UploadAudioFileHandler handles POST /api/audio.
// Expected multipart form fields:
// - user_id: owning user, required
// - title: required
// - description: optional
// - duration: optional, seconds
// - audio_file: the audio binary (mp3, wav, ogg, m4a, flac)
// The owner is resolved and the form validated before any storage write; a
// failed binary write aborts the create with no record persisted.
func (h *APIHandler) UploadAudioFileHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.writeError(w, repository.NewValidationError("body", "failed to parse multipart form"))
		return
	}

	userIDValue := r.FormValue("user_id")
	if userIDValue == "" {
		h.writeError(w, repository.NewValidationError("user_id", "user_id is required"))
		return
	}
	userID, err := strconv.ParseInt(userIDValue, 10, 64)
	if err != nil || userID <= 0 {
		h.writeError(w, repository.NewValidationError("user_id", "user_id must be a positive integer"))
		return
	}

	owner, err := h.userRepo.GetUserByID(userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	title := r.FormValue("title")
	if title == "" {
		h.writeError(w, repository.NewValidationError("title", "title is required"))
		return
	}
	description := r.FormValue("description")

	var duration float64
	if v := r.FormValue("duration"); v != "" {
		duration, err = strconv.ParseFloat(v, 64)
		if err != nil || duration < 0 {
			h.writeError(w, repository.NewValidationError("duration", "duration must be a non-negative number"))
			return
		}
	}

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		h.writeError(w, repository.NewValidationError("audio_file", "audio_file is required"))
		return
	}
	defer file.Close()

	if !model.ExtensionAllowed(header.Filename) {
		h.writeError(w, repository.NewValidationError("audio_file", "file extension not allowed, expected one of: mp3, wav, ogg, m4a, flac"))
		return
	}

	ctx := r.Context()
	objectPath, err := storage.ResolveAudioObjectPath(ctx, h.store, h.cfg.AudioNamespace, owner.Username, header.Filename)
	if err != nil {
		h.writeError(w, err)
		return
	}

	size, err := h.store.Put(ctx, objectPath, file, header.Size, storage.ContentTypeByExtension(header.Filename))
	if err != nil {
		logger.Error("Failed to store audio binary",
			logger.ErrorField(err),
			logger.String("objectPath", objectPath),
			logger.Int64("userId", userID))
		h.writeError(w, err)
		return
	}

	newFile := &model.AudioFile{
		UserID:      userID,
		Title:       title,
		Description: description,
		FilePath:    objectPath,
		Duration:    duration,
		FileSize:    size,
	}

	if _, err := h.audioRepo.CreateAudioFile(newFile); err != nil {
		// The binary was written but the record failed; reclaim the object.
		if rmErr := h.store.Remove(ctx, objectPath); rmErr != nil {
			logger.Warn("Failed to reclaim orphaned binary",
				logger.ErrorField(rmErr),
				logger.String("objectPath", objectPath))
		}
		h.writeError(w, err)
		return
	}

	h.invalidateUserAudio(ctx, userID)
	logger.Info("Audio file uploaded",
		logger.Int64("audioId", newFile.ID),
		logger.Int64("userId", userID),
		logger.String("objectPath", objectPath),
		logger.Int64("fileSize", size))
	h.writeJSON(w, http.StatusCreated, h.audioFileJSON(newFile))
}

// audioFileUpdate carries the partial fields accepted by UpdateAudioFileHandler.
// file_size is absent on purpose: it is derived from the stored binary only.
type audioFileUpdate struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Duration    *float64 `json:"duration"`
	UserID      *int64   `json:"user_id"`
}

// UpdateAudioFileHandler handles PUT/PATCH /api/audio/{id}. JSON bodies carry
// field updates; multipart bodies may additionally replace the binary, which
// recomputes file_size and supersedes the previous object.
func (h *APIHandler) UpdateAudioFileHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeError(w, repository.ErrNotFound)
		return
	}

	f, err := h.audioRepo.GetAudioFileByID(id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ctx := r.Context()
	var supersededPath string
	if isMultipart(r) {
		supersededPath, err = h.applyMultipartUpdate(r, f)
		if err != nil {
			h.writeError(w, err)
			return
		}
	} else {
		var req audioFileUpdate
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, repository.NewValidationError("body", "invalid JSON body"))
			return
		}
		if err := applyFieldUpdate(f, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}

	if err := h.audioRepo.UpdateAudioFile(f); err != nil {
		h.writeError(w, err)
		return
	}

	// A replaced binary leaves the old object behind; reclaim best-effort.
	if supersededPath != "" && supersededPath != f.FilePath {
		if rmErr := h.store.Remove(ctx, supersededPath); rmErr != nil && !errors.Is(rmErr, storage.ErrObjectNotFound) {
			logger.Warn("Failed to remove superseded binary",
				logger.ErrorField(rmErr),
				logger.String("objectPath", supersededPath))
		}
	}

	h.invalidateUserAudio(ctx, f.UserID)
	h.writeJSON(w, http.StatusOK, h.audioFileJSON(f))
}

// SoftDeleteAudioFileHandler handles DELETE /api/audio/{id}: the record is
// flagged inactive, binary and record remain. Idempotent.
func (h *APIHandler) SoftDeleteAudioFileHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeError(w, repository.ErrNotFound)
		return
	}

	f, err := h.audioRepo.GetAudioFileByID(id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if f.IsActive {
		if err := h.audioRepo.SetAudioFileActive(id, false); err != nil {
			h.writeError(w, err)
			return
		}
		h.invalidateUserAudio(r.Context(), f.UserID)
		logger.Info("Audio file soft deleted",
			logger.Int64("audioId", id),
			logger.String("state", string(model.LifecycleInactive)))
	}

	w.WriteHeader(http.StatusNoContent)
}

// HardDeleteAudioFileHandler handles DELETE /api/audio/{id}/hard_delete:
// the binary is removed first, then the record. A failed binary removal is
// logged and never blocks record deletion.
func (h *APIHandler) HardDeleteAudioFileHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeError(w, repository.ErrNotFound)
		return
	}

	f, err := h.audioRepo.GetAudioFileByID(id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ctx := r.Context()
	if f.FilePath != "" {
		if err := h.store.Remove(ctx, f.FilePath); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			logger.Warn("Failed to remove binary during hard delete, proceeding with record removal",
				logger.ErrorField(err),
				logger.Int64("audioId", id),
				logger.String("objectPath", f.FilePath))
		}
	}

	if err := h.audioRepo.DeleteAudioFile(id); err != nil {
		h.writeError(w, err)
		return
	}

	h.invalidateUserAudio(ctx, f.UserID)
	logger.Info("Audio file hard deleted",
		logger.Int64("audioId", id),
		logger.String("state", string(model.LifecyclePurged)))
	w.WriteHeader(http.StatusNoContent)
}

// applyMultipartUpdate applies form fields and an optional replacement
// binary to the record. It returns the object path superseded by a
// replacement, if any. The new object is written before the record is
// touched; a storage failure leaves the record unchanged.
func (h *APIHandler) applyMultipartUpdate(r *http.Request, f *model.AudioFile) (string, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return "", repository.NewValidationError("body", "failed to parse multipart form")
	}

	req := audioFileUpdate{}
	if v, ok := formValue(r, "title"); ok {
		req.Title = &v
	}
	if v, ok := formValue(r, "description"); ok {
		req.Description = &v
	}
	if v, ok := formValue(r, "duration"); ok {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || d < 0 {
			return "", repository.NewValidationError("duration", "duration must be a non-negative number")
		}
		req.Duration = &d
	}
	if v, ok := formValue(r, "user_id"); ok {
		uid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return "", repository.NewValidationError("user_id", "user_id must be a positive integer")
		}
		req.UserID = &uid
	}
	if err := applyFieldUpdate(f, &req); err != nil {
		return "", err
	}

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		if err == http.ErrMissingFile {
			return "", nil
		}
		return "", repository.NewValidationError("audio_file", "failed to read audio_file")
	}
	defer file.Close()

	if !model.ExtensionAllowed(header.Filename) {
		return "", repository.NewValidationError("audio_file", "file extension not allowed, expected one of: mp3, wav, ogg, m4a, flac")
	}

	owner, err := h.userRepo.GetUserByID(f.UserID)
	if err != nil {
		return "", err
	}

	ctx := r.Context()
	objectPath, err := storage.ResolveAudioObjectPath(ctx, h.store, h.cfg.AudioNamespace, owner.Username, header.Filename)
	if err != nil {
		return "", err
	}

	size, err := h.store.Put(ctx, objectPath, file, header.Size, storage.ContentTypeByExtension(header.Filename))
	if err != nil {
		return "", err
	}

	superseded := f.FilePath
	f.FilePath = objectPath
	f.FileSize = size
	return superseded, nil
}

// isMultipart reports whether the request carries a multipart form body.
func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// formValue reports a form field's value and whether the field was present
// at all, so callers can tell "absent" from "empty".
func formValue(r *http.Request, key string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// applyFieldUpdate folds metadata changes into the record, rejecting
// ownership mutation and empty titles.
func applyFieldUpdate(f *model.AudioFile, req *audioFileUpdate) error {
	if req.UserID != nil && *req.UserID != f.UserID {
		return repository.NewValidationError("user_id", "ownership is immutable")
	}
	if req.Title != nil {
		if *req.Title == "" {
			return repository.NewValidationError("title", "title is required")
		}
		f.Title = *req.Title
	}
	if req.Description != nil {
		f.Description = *req.Description
	}
	if req.Duration != nil {
		if *req.Duration < 0 {
			return repository.NewValidationError("duration", "duration must be a non-negative number")
		}
		f.Duration = *req.Duration
	}
	return nil
}
