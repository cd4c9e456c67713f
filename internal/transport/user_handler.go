package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"inventract/internal/domain"
	"inventract/internal/middleware"
	"inventract/internal/repository"
	"inventract/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=150"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=user staff"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the token refresh request payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// UpdateProfileRequest carries the editable profile fields; only fields
// present in the body are applied
type UpdateProfileRequest struct {
	Username        *string `json:"username,omitempty" validate:"omitempty,min=3,max=150"`
	Phone           *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Nickname        *string `json:"nickname,omitempty" validate:"omitempty,max=50"`
	AddressStreet   *string `json:"address_street,omitempty" validate:"omitempty,max=255"`
	AddressHouse    *string `json:"address_house,omitempty" validate:"omitempty,max=50"`
	AddressDistrict *string `json:"address_district,omitempty" validate:"omitempty,max=100"`
}

// ApprovalRequest flips the staff approval flags on an account
type ApprovalRequest struct {
	IsApproved    bool `json:"is_approved"`
	IsActiveStaff bool `json:"is_active_staff"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         UserProfile `json:"user"`
}

// RefreshResponse represents the token refresh response
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// UserProfile represents account profile data
type UserProfile struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	Role            string `json:"role"`
	IsApproved      bool   `json:"is_approved"`
	IsActiveStaff   bool   `json:"is_active_staff"`
	Phone           string `json:"phone,omitempty"`
	Nickname        string `json:"nickname,omitempty"`
	AddressStreet   string `json:"address_street,omitempty"`
	AddressHouse    string `json:"address_house,omitempty"`
	AddressDistrict string `json:"address_district,omitempty"`
}

// UserHandler handles HTTP requests for account operations
type UserHandler struct {
	userService service.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers all account routes
func (h *UserHandler) RegisterRoutes(r chi.Router, authMiddleware, staffOnly func(http.Handler) http.Handler) {
	r.Route("/api/users", func(r chi.Router) {
		// Public routes
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.RefreshToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/logout", h.Logout)
			r.Get("/profile", h.GetProfile)
			r.Patch("/profile", h.UpdateProfile)
			r.Get("/profile/history", h.EditHistory)

			// Staff-only routes
			r.Group(func(r chi.Router) {
				r.Use(staffOnly)
				r.Get("/", h.ListUsers)
				r.Patch("/{id}/approval", h.SetApproval)
			})
		})
	})
}

// Register handles account registration
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.userService.Register(r.Context(), req.Email, req.Username, req.Password, req.Role)
	if err != nil {
		h.logger.Error("Registration failed", zap.Error(err))

		if errors.Is(err, repository.ErrUserAlreadyExists) {
			middleware.RespondWithError(w, http.StatusConflict, "user with this email or username already exists")
			return
		}
		if errors.Is(err, service.ErrInvalidRole) {
			middleware.RespondWithError(w, http.StatusBadRequest, "role must be user or staff")
			return
		}

		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	h.logger.Info("User registered successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toUserProfile(user))
}

// Login handles account authentication
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accessToken, refreshToken, user, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debug("Login failed", zap.Error(err))

		if errors.Is(err, service.ErrInvalidCredentials) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		if errors.Is(err, service.ErrStaffNotApproved) {
			middleware.RespondWithError(w, http.StatusForbidden, "staff not approved or deactivated")
			return
		}

		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	response := LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         toUserProfile(user),
	}

	h.logger.Info("User logged in successfully", zap.String("user_id", user.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// Logout handles account logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Logout decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.userService.Logout(r.Context(), req.RefreshToken); err != nil {
		h.logger.Error("Logout failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to logout")
		return
	}

	h.logger.Info("User logged out successfully")
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// RefreshToken handles token refresh
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Refresh token validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newAccessToken, err := h.userService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Debug("Token refresh failed", zap.Error(err))

		if errors.Is(err, service.ErrInvalidToken) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		if errors.Is(err, service.ErrTokenExpired) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "refresh token expired")
			return
		}

		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	h.logger.Info("Token refreshed successfully")
	middleware.RespondWithJSON(w, http.StatusOK, RefreshResponse{AccessToken: newAccessToken})
}

// GetProfile handles getting the authenticated account's profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get user profile", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get user profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toUserProfile(user))
}

// UpdateProfile handles profile edits; each changed field is recorded in the
// edit history
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Profile update validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	changes := map[string]string{}
	setIfPresent(changes, "username", req.Username)
	setIfPresent(changes, "phone", req.Phone)
	setIfPresent(changes, "nickname", req.Nickname)
	setIfPresent(changes, "address_street", req.AddressStreet)
	setIfPresent(changes, "address_house", req.AddressHouse)
	setIfPresent(changes, "address_district", req.AddressDistrict)

	user, err := h.userService.UpdateProfile(r.Context(), userID, changes)
	if err != nil {
		h.logger.Error("Profile update failed", zap.Error(err))

		if errors.Is(err, repository.ErrUserAlreadyExists) {
			middleware.RespondWithError(w, http.StatusConflict, "username already taken")
			return
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "user not found")
			return
		}

		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	h.logger.Info("Profile updated", zap.String("user_id", userID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, toUserProfile(user))
}

// EditHistory returns the authenticated account's profile edit trail
func (h *UserHandler) EditHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	edits, err := h.userService.ProfileEditHistory(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get edit history", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get edit history")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, edits)
}

// ListUsers returns all accounts (staff only)
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("Failed to list users", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	profiles := make([]UserProfile, 0, len(users))
	for _, user := range users {
		profiles = append(profiles, toUserProfile(user))
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"total_users": len(profiles),
		"users":       profiles,
	})
}

// SetApproval flips the staff approval flags on an account (staff only)
func (h *UserHandler) SetApproval(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	var req ApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.userService.ApproveStaff(r.Context(), targetID, req.IsApproved, req.IsActiveStaff); err != nil {
		h.logger.Error("Approval update failed", zap.Error(err))

		if errors.Is(err, repository.ErrUserNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "user not found")
			return
		}

		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update approval")
		return
	}

	h.logger.Info("Staff approval updated",
		zap.String("user_id", targetID.String()),
		zap.Bool("is_approved", req.IsApproved),
		zap.Bool("is_active_staff", req.IsActiveStaff),
	)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "approval updated"})
}

// authenticatedUserID extracts and parses the user ID set by the auth
// middleware, writing the error response itself when absent
func (h *UserHandler) authenticatedUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.logger.Error("User ID not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.logger.Error("Invalid user ID format", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user ID")
		return uuid.Nil, false
	}

	return userID, true
}

func toUserProfile(user *domain.User) UserProfile {
	return UserProfile{
		ID:              user.ID.String(),
		Email:           user.Email,
		Username:        user.Username,
		Role:            user.Role,
		IsApproved:      user.IsApproved,
		IsActiveStaff:   user.IsActiveStaff,
		Phone:           user.Phone,
		Nickname:        user.Nickname,
		AddressStreet:   user.AddressStreet,
		AddressHouse:    user.AddressHouse,
		AddressDistrict: user.AddressDistrict,
	}
}

func setIfPresent(changes map[string]string, field string, value *string) {
	if value != nil {
		changes[field] = *value
	}
}
