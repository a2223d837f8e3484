package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"audiohub/logger"
	"audiohub/model"
	"audiohub/repository"
	"audiohub/storage"

	"github.com/gorilla/mux"
)

// ListUsersHandler handles GET /api/users.
func (h *APIHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.userRepo.GetAllUsers()
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(users))
	for _, u := range users {
		out = append(out, h.userJSON(u))
	}
	h.writeJSON(w, http.StatusOK, out)
}

type userRequest struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
	Phone     *string `json:"phone"`
}

// CreateUserHandler handles POST /api/users. Username and email are
// required and must be unique.
func (h *APIHandler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, repository.NewValidationError("body", "invalid JSON body"))
		return
	}

	if req.Username == nil || *req.Username == "" {
		h.writeError(w, repository.NewValidationError("username", "username is required"))
		return
	}
	if req.Email == nil || *req.Email == "" {
		h.writeError(w, repository.NewValidationError("email", "email is required"))
		return
	}

	if err := h.checkUserUniqueness(*req.Username, *req.Email, 0); err != nil {
		h.writeError(w, err)
		return
	}

	u := &model.User{
		Username: *req.Username,
		Email:    *req.Email,
	}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}
	if req.Phone != nil {
		u.Phone = *req.Phone
	}

	if _, err := h.userRepo.CreateUser(u); err != nil {
		h.writeError(w, err)
		return
	}

	logger.Info("User created", logger.Int64("userId", u.ID), logger.String("username", u.Username))
	h.writeJSON(w, http.StatusCreated, h.userJSON(u))
}

// GetUserHandler handles GET /api/users/{id}: the profile plus the user's
// active audio files and their count.
func (h *APIHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeError(w, repository.ErrNotFound)
		return
	}

	u, err := h.userRepo.GetUserByID(id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	files, err := h.activeAudioForUser(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	detail := h.userJSON(u)
	detail["audio_files"] = h.audioFileListJSON(files)
	detail["audio_count"] = len(files)
	h.writeJSON(w, http.StatusOK, detail)
}

// UpdateUserHandler handles PUT /api/users/{id} with partial profile fields.
func (h *APIHandler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeError(w, repository.ErrNotFound)
		return
	}

	u, err := h.userRepo.GetUserByID(id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, repository.NewValidationError("body", "invalid JSON body"))
		return
	}

	username, email := u.Username, u.Email
	if req.Username != nil {
		if *req.Username == "" {
			h.writeError(w, repository.NewValidationError("username", "username is required"))
			return
		}
		username = *req.Username
	}
	if req.Email != nil {
		if *req.Email == "" {
			h.writeError(w, repository.NewValidationError("email", "email is required"))
			return
		}
		email = *req.Email
	}
	if err := h.checkUserUniqueness(username, email, id); err != nil {
		h.writeError(w, err)
		return
	}

	u.Username = username
	u.Email = email
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}
	if req.Phone != nil {
		u.Phone = *req.Phone
	}

	if err := h.userRepo.UpdateUser(u); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.userJSON(u))
}

// DeleteUserHandler handles DELETE /api/users/{id}. Ownership is a hard
// dependency: every audio record of the user is removed, its binary
// reclaimed best-effort, then the user itself.
func (h *APIHandler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeError(w, repository.ErrNotFound)
		return
	}

	if _, err := h.userRepo.GetUserByID(id); err != nil {
		h.writeError(w, err)
		return
	}

	files, err := h.audioRepo.GetAudioFilesByUserID(id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ctx := r.Context()
	for _, f := range files {
		if f.FilePath != "" {
			if rmErr := h.store.Remove(ctx, f.FilePath); rmErr != nil && !errors.Is(rmErr, storage.ErrObjectNotFound) {
				logger.Warn("Failed to remove binary during user cascade delete",
					logger.ErrorField(rmErr),
					logger.Int64("audioId", f.ID),
					logger.String("objectPath", f.FilePath))
			}
		}
		if err := h.audioRepo.DeleteAudioFile(f.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			h.writeError(w, err)
			return
		}
	}

	if err := h.userRepo.DeleteUser(id); err != nil {
		h.writeError(w, err)
		return
	}

	h.invalidateUserAudio(ctx, id)
	logger.Info("User deleted with cascade",
		logger.Int64("userId", id),
		logger.Int("audioFilesRemoved", len(files)))
	w.WriteHeader(http.StatusNoContent)
}

// UserAudioFilesHandler handles GET /api/users/{id}/audio_files: the user's
// active audio records, newest upload first.
func (h *APIHandler) UserAudioFilesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeError(w, repository.ErrNotFound)
		return
	}

	if _, err := h.userRepo.GetUserByID(id); err != nil {
		h.writeError(w, err)
		return
	}

	files, err := h.activeAudioForUser(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.audioFileListJSON(files))
}

// checkUserUniqueness rejects username/email values already taken by
// another user. selfID excludes the user being updated.
func (h *APIHandler) checkUserUniqueness(username, email string, selfID int64) error {
	existing, err := h.userRepo.GetUserByUsername(username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return repository.NewValidationError("username", "username already exists")
	}

	existing, err = h.userRepo.GetUserByEmail(email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return repository.NewValidationError("email", "email already exists")
	}
	return nil
}
