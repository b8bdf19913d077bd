package handlers

import (
	"net/http"
	"time"

	"github.com/isharee/backend/internal/db"
	"github.com/isharee/backend/internal/middleware"
	"github.com/isharee/backend/internal/models"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Pool: deps.Pool}
	users := UserHandler{
		Users:             deps.Users,
		Sessions:          deps.Sessions,
		Tokens:            deps.Tokens,
		Mutator:           deps.Mutator,
		Videos:            deps.Videos,
		Media:             deps.Media,
		Email:             deps.Email,
		ClientURL:         deps.ClientURL,
		SupportEmail:      deps.SupportEmail,
		DefaultPictureURL: deps.DefaultPictureURL,
		DefaultPictureID:  deps.DefaultPictureID,
		CookieSecure:      deps.CookieSecure,
		NowFunc:           deps.NowFunc,
	}
	videos := VideoHandler{Videos: deps.Videos, Mutator: deps.Mutator, NowFunc: deps.NowFunc}

	gate := deps.Gate
	admin := middleware.RequireRole(models.RoleAdmin)

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /api/v1/users/signup", users.SignUp)
	mux.HandleFunc("GET /api/v1/users/verify-email", users.VerifyEmail)
	mux.Handle("POST /api/v1/users/login", gate.Optional(http.HandlerFunc(users.Login)))
	mux.Handle("POST /api/v1/users/logout", gate.Require(http.HandlerFunc(users.Logout)))
	mux.HandleFunc("POST /api/v1/users/reset-password", users.RequestPasswordReset)
	mux.HandleFunc("POST /api/v1/users/reset-password/confirm", users.ConfirmPasswordReset)
	mux.HandleFunc("POST /api/v1/users/contact", users.ContactSupport)
	mux.Handle("GET /api/v1/users/account", gate.Require(http.HandlerFunc(users.GetAccount)))
	mux.Handle("PATCH /api/v1/users/account", gate.Require(http.HandlerFunc(users.UpdateAccount)))
	mux.Handle("DELETE /api/v1/users/account", gate.Require(http.HandlerFunc(users.DeleteAccount)))
	mux.Handle("PATCH /api/v1/users/account/password", gate.Require(http.HandlerFunc(users.ChangePassword)))
	mux.Handle("GET /api/v1/users/account/videos/loved", gate.Require(http.HandlerFunc(users.LovedVideos)))

	mux.Handle("POST /api/v1/videos", gate.Require(admin(http.HandlerFunc(videos.Create))))
	mux.HandleFunc("GET /api/v1/videos", videos.ByGrade)
	mux.HandleFunc("GET /api/v1/videos/search", videos.Search)
	mux.Handle("GET /api/v1/videos/{id}", gate.Optional(http.HandlerFunc(videos.Get)))
	mux.Handle("PATCH /api/v1/videos/{id}", gate.Require(admin(http.HandlerFunc(videos.Update))))
	mux.Handle("DELETE /api/v1/videos/{id}", gate.Require(admin(http.HandlerFunc(videos.Delete))))
	mux.Handle("PATCH /api/v1/videos/{id}/love", gate.Require(http.HandlerFunc(videos.ToggleLove)))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Pool    db.Pool
	Users   UserStore
	Sessions SessionManager
	Tokens  TokenIssuer
	Mutator AtomicMutator
	Videos  VideoStore
	Media   MediaStore
	Email   EmailSender
	Gate    middleware.AuthGate

	ClientURL    string
	SupportEmail string

	DefaultPictureURL string
	DefaultPictureID  string

	CookieSecure bool
	NowFunc      func() time.Time
}
