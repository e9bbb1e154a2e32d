package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// UserHandler handles account and profile endpoints.
type UserHandler struct {
	userSvc  service.UserService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewUserHandler(userSvc service.UserService, validate *validator.Validate, logger zerolog.Logger) *UserHandler {
	return &UserHandler{userSvc: userSvc, validate: validate, logger: logger}
}

func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("GET /users/me", authMiddleware(http.HandlerFunc(h.Me)))
	mux.Handle("GET /users/me/profile", authMiddleware(http.HandlerFunc(h.Profile)))
	mux.Handle("PATCH /users/me/profile", authMiddleware(http.HandlerFunc(h.UpdateProfile)))
	mux.Handle("POST /users/me/avatar-upload-url", authMiddleware(http.HandlerFunc(h.AvatarUploadURL)))
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := h.userSvc.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to fetch user")
		http.Error(w, "failed to fetch user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user, h.logger)
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	profile, err := h.userSvc.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to fetch profile")
		http.Error(w, "failed to fetch profile", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, profile, h.logger)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	profile, err := h.userSvc.UpdateProfile(r.Context(), userID, service.ProfileUpdate{
		Bio:      req.Bio,
		Website:  req.Website,
		Location: req.Location,
		Company:  req.Company,
		JobTitle: req.JobTitle,
	})
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to update profile")
		http.Error(w, "failed to update profile", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, profile, h.logger)
}

func (h *UserHandler) AvatarUploadURL(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	url, key, err := h.userSvc.AvatarUploadURL(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to create avatar upload URL")
		http.Error(w, "failed to create upload URL", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.AvatarUploadResponse{UploadURL: url, Key: key}, h.logger)
}
