package models

import "time"

// Role enumerates the flat authorization levels a user can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an account within the iShare platform.
type User struct {
	ID                string
	Username          string
	Email             string
	Password          string
	IsVerified        bool
	Role              Role
	ProfilePictureURL string
	ProfilePictureID  string
	RefreshTokens     []RefreshTokenRecord
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RefreshTokenRecord tracks one device's refresh token in hashed form so it
// can be revoked without the token itself ever being stored.
type RefreshTokenRecord struct {
	ID        string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Video represents an uploaded lesson video. The media itself lives in the
// object store; only its URL and opaque public id are kept here.
type Video struct {
	ID            string
	Title         string
	MediaURL      string
	MediaPublicID string
	LovedCount    int64
	Grades        []int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
