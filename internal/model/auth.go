package model

import "github.com/golang-jwt/jwt/v5"

// ParticipantClaims are JWT claims for a logged-in participant.
// The user id travels in RegisteredClaims.Subject.
type ParticipantClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// User is the identity returned by /auth/me and /auth/login
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// LoginRequest is the request body for participant login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful login
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
