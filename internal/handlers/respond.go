package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/isharee/backend/internal/logging"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// errorMessages maps status codes and stable message keys to client-facing
// text. Handlers never surface internal error detail.
var errorMessages = map[int]map[string]string{
	http.StatusBadRequest: {
		"default":       "Bad request.",
		"missingFields": "All fields are required.",
		"invalidBody":   "Invalid request body.",
		"invalidEmail":  "Please provide a valid email address.",
		"username":      "Username must be 3-15 characters of letters, numbers, and underscores.",
		"weakPassword":  "Password must contain at least one lowercase, one uppercase, one number, and one special character.",
		"noToken":       "Token is required.",
		"invalidToken":  "Invalid or expired token.",
		"alreadyVerified": "Email already verified.",
		"gradeRequired": "Grade is required.",
		"gradeRange":    "Grade must be a number between 1 and 12.",
		"searchQuery":   "Search query is required.",
	},
	http.StatusUnauthorized: {
		"default":         "Unauthorized. Please log in again.",
		"token":           "Token expired. Please log in again.",
		"currentPassword": "Password is incorrect.",
		"credentials":     "Invalid email or password. Please try again.",
	},
	http.StatusForbidden: {
		"default":     "Forbidden.",
		"verifyEmail": "Please verify your email.",
		"notAdmin":    "Forbidden: You must be an admin to perform this action.",
	},
	http.StatusNotFound: {
		"default": "Not found.",
		"user":    "User not found.",
		"video":   "Video not found.",
		"matches": "No matching videos found.",
	},
	http.StatusConflict: {
		"default":    "Conflict.",
		"userExists": "Email or username already in use.",
	},
	http.StatusInternalServerError: {
		"default":     "An error occurred.",
		"media":       "Failed to delete stored media.",
		"emailFailed": "Email send failed.",
	},
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, key string) {
	messages, ok := errorMessages[status]
	if !ok {
		messages = errorMessages[http.StatusInternalServerError]
	}
	message, ok := messages[key]
	if !ok {
		message = messages["default"]
	}
	respondJSON(ctx, w, status, map[string]string{"error": message})
}
