package service

import (
	"errors"
	"sync"
	"time"

	"compclient/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const tokenTTL = 24 * time.Hour

// participantNamespace scopes the name-based participant ids
var participantNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("compclient/participants"))

// AuthService authenticates the configured participant and issues tokens
type AuthService struct {
	username     string
	passwordHash []byte
	jwtSecret    []byte
	now          func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // token id -> expiry
}

// NewAuthService hashes password once; only the hash is kept
func NewAuthService(username, password, secret string) (*AuthService, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &AuthService{
		username:     username,
		passwordHash: hash,
		jwtSecret:    []byte(secret),
		now:          time.Now,
		revoked:      make(map[string]time.Time),
	}, nil
}

// ParticipantID derives the stable user id for a username
func ParticipantID(username string) string {
	return uuid.NewSHA1(participantNamespace, []byte(username)).String()
}

// Login validates credentials and returns a signed token
func (s *AuthService) Login(username, password string) (*model.LoginResponse, error) {
	if username != s.username {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	user := model.User{ID: ParticipantID(username), Username: username}
	now := s.now()
	claims := &model.ParticipantClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &model.LoginResponse{Token: tokenString, User: user}, nil
}

// ValidateToken validates a participant JWT and returns its claims
func (s *AuthService) ValidateToken(tokenString string) (*model.ParticipantClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.ParticipantClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.ParticipantClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke invalidates one token until it would have expired anyway
func (s *AuthService) Revoke(claims *model.ParticipantClaims) {
	if claims == nil || claims.ID == "" {
		return
	}
	expiry := s.now().Add(tokenTTL)
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[claims.ID] = expiry
}
