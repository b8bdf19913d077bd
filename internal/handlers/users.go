package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/isharee/backend/internal/auth"
	"github.com/isharee/backend/internal/logging"
	"github.com/isharee/backend/internal/models"
	"github.com/isharee/backend/internal/repositories"
)

// UserHandler implements account lifecycle endpoints: signup, verification,
// login/logout, password management, and account mutation.
type UserHandler struct {
	Users   UserStore
	Sessions SessionManager
	Tokens  TokenIssuer
	Mutator AtomicMutator
	Videos  VideoStore
	Media   MediaStore
	Email   EmailSender

	ClientURL    string
	SupportEmail string

	DefaultPictureURL string
	DefaultPictureID  string

	CookieSecure bool
	NowFunc      func() time.Time
}

type signUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResponse struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture"`
}

// SignUp handles POST /api/v1/users/signup.
func (h UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalidBody")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Password == "" || req.Username == "" {
		respondError(ctx, w, http.StatusBadRequest, "missingFields")
		return
	}
	if !validUsername(req.Username) {
		respondError(ctx, w, http.StatusBadRequest, "username")
		return
	}
	if !validEmail(req.Email) {
		respondError(ctx, w, http.StatusBadRequest, "invalidEmail")
		return
	}
	if !validPassword(req.Password) {
		respondError(ctx, w, http.StatusBadRequest, "weakPassword")
		return
	}

	if _, err := h.Users.FindByEmail(ctx, req.Email); err == nil {
		respondError(ctx, w, http.StatusConflict, "userExists")
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("signup email lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("signup failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	now := h.now()
	user := models.User{
		ID:                uuid.NewString(),
		Username:          req.Username,
		Email:             req.Email,
		Password:          string(hashed),
		Role:              models.RoleUser,
		ProfilePictureURL: h.DefaultPictureURL,
		ProfilePictureID:  h.DefaultPictureID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, "userExists")
			return
		}
		logger.Error("signup failed to create user", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	// Verification mail is best-effort: a relay hiccup must not undo signup.
	if err := h.sendVerificationLink(r, user); err != nil {
		logger.Error("send verification link", "error", err, "userId", user.ID)
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"message": "User registered! Please verify your email.",
		"data":    map[string]string{"username": user.Username, "email": user.Email},
	})
}

// VerifyEmail handles GET /api/v1/users/verify-email.
func (h UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(ctx, w, http.StatusBadRequest, "noToken")
		return
	}

	identity, err := h.Tokens.Verify(token)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalidToken")
		return
	}

	user, err := h.Users.FindByID(ctx, identity.UserID)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalidToken")
		return
	}

	if user.IsVerified {
		respondError(ctx, w, http.StatusBadRequest, "alreadyVerified")
		return
	}

	user.IsVerified = true
	user.UpdatedAt = h.now()
	if err := h.Users.Update(ctx, user); err != nil {
		logging.FromContext(ctx).Error("mark user verified", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "Email verified successfully!"})
}

// Login handles POST /api/v1/users/login. It runs behind the optional gate,
// so an already-authenticated caller short-circuits.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if _, ok := auth.IdentityFromContext(ctx); ok {
		respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "User is already logged in."})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalidBody")
		return
	}

	if req.Email == "" || req.Password == "" {
		respondError(ctx, w, http.StatusBadRequest, "missingFields")
		return
	}

	user, tokens, err := h.Sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "user")
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondError(ctx, w, http.StatusUnauthorized, "credentials")
		case errors.Is(err, auth.ErrEmailNotVerified):
			respondError(ctx, w, http.StatusForbidden, "verifyEmail")
		default:
			logger.Error("login failed", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "default")
		}
		return
	}

	auth.SetTokenCookie(w, auth.AccessTokenCookie, tokens.AccessToken, auth.AccessTokenTTL, h.CookieSecure)
	auth.SetTokenCookie(w, auth.RefreshTokenCookie, tokens.RefreshToken, auth.RefreshTokenTTL, h.CookieSecure)

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "User successfully logged in",
		"data": map[string]any{
			"user": accountResponse{
				Username:       user.Username,
				Email:          user.Email,
				ProfilePicture: user.ProfilePictureURL,
			},
		},
	})
}

// Logout handles POST /api/v1/users/logout. Only the presenting device's
// session ends; other devices stay logged in.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if cookie, err := r.Cookie(auth.RefreshTokenCookie); err == nil && cookie.Value != "" {
		if err := h.Sessions.LogoutDevice(ctx, cookie.Value, user); err != nil {
			logging.FromContext(ctx).Error("logout device", "error", err, "userId", user.ID)
			respondError(ctx, w, http.StatusInternalServerError, "default")
			return
		}
	}

	auth.ClearTokenCookies(w, h.CookieSecure)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

// RequestPasswordReset handles POST /api/v1/users/reset-password.
func (h UserHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalidBody")
		return
	}

	user, err := h.Users.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user")
			return
		}
		logger.Error("password reset lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	token, err := h.Tokens.IssueLinkToken(user.ID)
	if err != nil {
		logger.Error("issue reset token", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", h.ClientURL, token)
	if err := h.Email.Send(ctx, user.Email, "Password Reset Request",
		fmt.Sprintf("Click to reset: %s", resetURL),
		fmt.Sprintf(`<p>Click <a href="%s">here</a> to reset your password.</p>`, resetURL)); err != nil {
		logger.Error("send reset email", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "emailFailed")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "Password reset link sent"})
}

// ConfirmPasswordReset handles POST /api/v1/users/reset-password/confirm.
func (h UserHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalidBody")
		return
	}

	if req.Token == "" {
		respondError(ctx, w, http.StatusBadRequest, "noToken")
		return
	}
	if !validPassword(req.NewPassword) {
		respondError(ctx, w, http.StatusBadRequest, "weakPassword")
		return
	}

	identity, err := h.Tokens.Verify(req.Token)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalidToken")
		return
	}

	if err := h.Mutator.ResetPassword(ctx, identity.UserID, req.NewPassword); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user")
			return
		}
		logging.FromContext(ctx).Error("reset password", "error", err, "userId", identity.UserID)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	auth.ClearTokenCookies(w, h.CookieSecure)
	respondJSON(ctx, w, http.StatusOK, map[string]string{
		"message": "Password reset successful. Please log in again.",
	})
}

// GetAccount handles GET /api/v1/users/account.
func (h UserHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"success": true,
		"data": accountResponse{
			Username:       user.Username,
			Email:          user.Email,
			ProfilePicture: user.ProfilePictureURL,
		},
	})
}

// UpdateAccount handles PATCH /api/v1/users/account. Username and profile
// picture are updatable; replacing a non-default picture deletes the old
// asset from the media store.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Username         string `json:"username"`
		ProfilePictureURL string `json:"profilePictureUrl"`
		ProfilePictureID  string `json:"profilePictureId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalidBody")
		return
	}

	if req.Username != "" && req.Username != user.Username {
		if !validUsername(req.Username) {
			respondError(ctx, w, http.StatusBadRequest, "username")
			return
		}
		if existing, err := h.Users.FindByUsername(ctx, req.Username); err == nil && existing.ID != user.ID {
			respondError(ctx, w, http.StatusConflict, "userExists")
			return
		} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("username lookup failed", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "default")
			return
		}
		user.Username = req.Username
	}

	if req.ProfilePictureURL != "" && req.ProfilePictureID != "" {
		oldPictureID := user.ProfilePictureID
		user.ProfilePictureURL = req.ProfilePictureURL
		user.ProfilePictureID = req.ProfilePictureID

		if oldPictureID != "" && oldPictureID != h.DefaultPictureID {
			if err := h.Media.Delete(ctx, oldPictureID); err != nil {
				logger.Error("delete old profile picture", "error", err, "publicId", oldPictureID)
				respondError(ctx, w, http.StatusInternalServerError, "media")
				return
			}
		}
	}

	user.UpdatedAt = h.now()
	if err := h.Users.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, "userExists")
			return
		}
		logger.Error("update account", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Account successfully updated",
		"data": accountResponse{
			Username:       user.Username,
			Email:          user.Email,
			ProfilePicture: user.ProfilePictureURL,
		},
	})
}

// DeleteAccount handles DELETE /api/v1/users/account.
func (h UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "user")
		return
	}

	if err := h.Mutator.DeleteAccount(ctx, identity.UserID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "user")
		case errors.Is(err, repositories.ErrDependency):
			logging.FromContext(ctx).Error("delete account media", "error", err, "userId", identity.UserID)
			respondError(ctx, w, http.StatusInternalServerError, "media")
		default:
			logging.FromContext(ctx).Error("delete account", "error", err, "userId", identity.UserID)
			respondError(ctx, w, http.StatusInternalServerError, "default")
		}
		return
	}

	auth.ClearTokenCookies(w, h.CookieSecure)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "Account successfully deleted"})
}

// ChangePassword handles PATCH /api/v1/users/account/password. Every device
// session is revoked on success.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "user")
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalidBody")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		respondError(ctx, w, http.StatusBadRequest, "missingFields")
		return
	}
	if !validPassword(req.NewPassword) {
		respondError(ctx, w, http.StatusBadRequest, "weakPassword")
		return
	}

	if err := h.Mutator.ChangePassword(ctx, identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondError(ctx, w, http.StatusUnauthorized, "currentPassword")
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "user")
		default:
			logging.FromContext(ctx).Error("change password", "error", err, "userId", identity.UserID)
			respondError(ctx, w, http.StatusInternalServerError, "default")
		}
		return
	}

	auth.ClearTokenCookies(w, h.CookieSecure)
	respondJSON(ctx, w, http.StatusOK, map[string]string{
		"message": "Password updated, please log in again.",
	})
}

// LovedVideos handles GET /api/v1/users/account/videos/loved.
func (h UserHandler) LovedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "user")
		return
	}

	videos, err := h.Videos.ListLovedBy(ctx, identity.UserID)
	if err != nil {
		logging.FromContext(ctx).Error("list loved videos", "error", err, "userId", identity.UserID)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	if len(videos) == 0 {
		respondJSON(ctx, w, http.StatusOK, map[string]any{
			"message": "User has not loved any videos.",
			"videos":  []videoResponse{},
		})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "User's loved videos retrieved successfully",
		"videos":  toVideoResponses(videos),
	})
}

// ContactSupport handles POST /api/v1/users/contact. Unlike verification
// mail, a delivery failure here is surfaced to the caller.
func (h UserHandler) ContactSupport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Subject string `json:"subject"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalidBody")
		return
	}

	if !validEmail(req.Email) {
		respondError(ctx, w, http.StatusBadRequest, "invalidEmail")
		return
	}

	html := fmt.Sprintf(`<p><strong>Name:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
<p><strong>Subject:</strong> %s</p>
<p><strong>Message:</strong></p>
<p>%s</p>`, req.Name, req.Email, req.Subject, req.Message)

	if err := h.Email.Send(ctx, h.SupportEmail, fmt.Sprintf("Support Request: %s", req.Subject), req.Message, html); err != nil {
		logging.FromContext(ctx).Error("send support email", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "emailFailed")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]string{
		"message": "Your message has been sent successfully.",
	})
}

// currentUser loads the full user record behind the resolved identity,
// responding 404 when either is missing.
func (h UserHandler) currentUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "user")
		return models.User{}, false
	}

	user, err := h.Users.FindByID(ctx, identity.UserID)
	if err != nil {
		respondError(ctx, w, http.StatusNotFound, "user")
		return models.User{}, false
	}

	return user, true
}

func (h UserHandler) sendVerificationLink(r *http.Request, user models.User) error {
	token, err := h.Tokens.IssueLinkToken(user.ID)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/verify-account?token=%s", h.ClientURL, token)
	return h.Email.Send(r.Context(), user.Email, "Verify Your Email",
		fmt.Sprintf("Click the link to verify your email: %s", link),
		fmt.Sprintf(`<p>Click <a href="%s">here</a> to verify your email.</p>`, link))
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
