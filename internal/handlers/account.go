package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/campuslink/apiserver/internal/auth"
	"github.com/campuslink/apiserver/internal/services"
	"github.com/campuslink/apiserver/internal/store"
	"github.com/campuslink/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	maxAvatarMemory  = 8 << 20
	maxAvatarBytes   = 8 << 20
	formFieldAvatar  = "avatar"
	authHeaderName   = "Authorization"
	imageTypePrefix  = "image/"
	msgInvalidCreds  = "invalid credentials"
	msgUnauthorized  = "unauthorized"
	msgInvalidInput  = "invalid request"
	msgMissingFields = "missing required fields"
)

// AccountHandler provides the account and profile HTTP endpoints.
type AccountHandler struct {
	accounts  *services.AccountService
	validator *services.SignUpValidator
	tokens    *auth.JWTProvider
	logger    *slog.Logger
}

// NewAccountHandler constructs an AccountHandler with the provided dependencies.
func NewAccountHandler(
	accounts *services.AccountService,
	validator *services.SignUpValidator,
	tokens *auth.JWTProvider,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		validator: validator,
		tokens:    tokens,
		logger:    logger.With("component", "account_handler"),
	}
}

// AuthRouter registers signup/login routes on the given router.
func (h *AccountHandler) AuthRouter(r chi.Router) {
	r.Post("/signup", h.SignUp)
	r.Post("/login", h.Login)
}

// ProfileRouter registers the token-authenticated profile routes.
func (h *AccountHandler) ProfileRouter(r chi.Router) {
	r.Get("/", h.GetProfile)
	r.Put("/", h.UpdateProfile)
	r.Put("/password", h.ChangePassword)
	r.Get("/tags", h.Tags)
	r.Put("/avatar", h.UploadAvatar)
	r.Get("/avatar", h.GetAvatar)
	r.Delete("/avatar", h.DeleteAvatar)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token   string        `json:"token"`
	Profile types.Profile `json:"profile"`
}

type SignUpRejectedResponse struct {
	Rejections []types.FieldRejection `json:"rejections"`
}

type TagsResponse struct {
	Tags []string `json:"tags"`
}

type AvatarResponse struct {
	Key string `json:"key"`
}

// SignUp validates and registers a new account. Duplicate email or student ID
// produce a 409 listing every rejected field.
func (h *AccountHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req types.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidInput)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if req.Email == "" || req.Password == "" || req.Name == "" || req.StudentID == "" {
		writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	rejections, err := h.validator.Validate(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to validate signup")
		return
	}
	if len(rejections) > 0 {
		writeJSON(w, http.StatusConflict, SignUpRejectedResponse{Rejections: rejections})
		return
	}

	if err := h.accounts.Join(r.Context(), req); err != nil {
		// A concurrent signup can still hit the store's unique constraints
		// after the pre-check passed; report it the same way.
		if rejection, ok := services.RejectionForDuplicate(err, req); ok {
			writeJSON(w, http.StatusConflict, SignUpRejectedResponse{Rejections: []types.FieldRejection{rejection}})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, types.Result{Code: http.StatusCreated, Message: "account created"})
}

// Login verifies credentials and returns a JWT with the member's profile.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidInput)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	if _, err := h.accounts.CheckAccount(r.Context(), req.Email, req.Password); err != nil {
		// Both failure modes collapse to one response; only the log differs.
		switch {
		case errors.Is(err, services.ErrAccountNotFound):
			h.logger.Info("login rejected", "reason", "unknown email", "email", req.Email)
			writeError(w, http.StatusUnauthorized, msgInvalidCreds)
		case errors.Is(err, services.ErrCredentialMismatch):
			h.logger.Info("login rejected", "reason", "password mismatch", "email", req.Email)
			writeError(w, http.StatusUnauthorized, msgInvalidCreds)
		default:
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
		}
		return
	}

	token, err := h.tokens.Issue(req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	profile, err := h.accounts.ProfileByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Profile: profile})
}

// GetProfile returns the profile bound to the bearer token.
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.accounts.GetProfile(r.Context(), r.Header.Get(authHeaderName))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfile overwrites the phone and birth fields of the caller's account.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var profile types.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidInput)
		return
	}

	updated, err := h.accounts.UpdateProfile(r.Context(), r.Header.Get(authHeaderName), profile)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ChangePassword runs the password-change gates and relays the business
// result as-is; the result code doubles as the HTTP status.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req types.PasswordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidInput)
		return
	}

	result, err := h.accounts.ChangePassword(r.Context(), req, r.Header.Get(authHeaderName))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, result.Code, result)
}

// Tags lists the tag names attached to the caller's account.
func (h *AccountHandler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.accounts.Tags(r.Context(), r.Header.Get(authHeaderName))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// UploadAvatar stores a new avatar image for the caller.
func (h *AccountHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAvatarMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(formFieldAvatar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing avatar file")
		return
	}
	defer file.Close()

	if header.Size > maxAvatarBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "avatar too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, imageTypePrefix) {
		writeError(w, http.StatusUnsupportedMediaType, "avatar must be an image")
		return
	}

	key, err := h.accounts.UploadAvatar(r.Context(), r.Header.Get(authHeaderName), file, header.Size, contentType)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvatarResponse{Key: key})
}

// GetAvatar streams the caller's stored avatar.
func (h *AccountHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	rc, err := h.accounts.OpenAvatar(r.Context(), r.Header.Get(authHeaderName))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

// DeleteAvatar removes the caller's stored avatar.
func (h *AccountHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteAvatar(r.Context(), r.Header.Get(authHeaderName)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrIdentityResolution):
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, services.ErrAvatarNotFound):
		writeError(w, http.StatusNotFound, "avatar not found")
	case errors.Is(err, services.ErrAvatarsDisabled):
		writeError(w, http.StatusServiceUnavailable, "avatar storage is not configured")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
