package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"compclient/internal/api"
	"compclient/internal/model"
)

const (
	authRetries    = 3
	authRetryDelay = time.Second
)

// AuthAPI is the slice of the backend used for authentication
type AuthAPI interface {
	Me(ctx context.Context) (*model.User, error)
	Login(ctx context.Context, username, password string) (*model.LoginResponse, error)
	Logout(ctx context.Context) error
}

// Auth tracks the logged-in user
type Auth struct {
	api   AuthAPI
	sleep func(ctx context.Context, d time.Duration) error

	mu   sync.RWMutex
	user *model.User
}

// NewAuth creates an Auth over the given backend
func NewAuth(authAPI AuthAPI) *Auth {
	return &Auth{api: authAPI, sleep: sleepContext}
}

// User returns the logged-in user, nil when logged out
func (a *Auth) User() *model.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user
}

func (a *Auth) setUser(u *model.User) {
	a.mu.Lock()
	a.user = u
	a.mu.Unlock()
}

// withRetry retries fn with doubling delays; a 401 is final
func (a *Auth) withRetry(ctx context.Context, fn func() error) error {
	delay := authRetryDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || errors.Is(err, api.ErrUnauthorized) || attempt == authRetries {
			return err
		}
		log.Printf("[Auth] Retrying in %v: %v", delay, err)
		if err := a.sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
}

// CheckAuth resolves the current user. Being logged out is not an error:
// it returns nil, nil.
func (a *Auth) CheckAuth(ctx context.Context) (*model.User, error) {
	var user *model.User
	err := a.withRetry(ctx, func() error {
		u, err := a.api.Me(ctx)
		user = u
		return err
	})
	if err != nil {
		a.setUser(nil)
		if errors.Is(err, api.ErrUnauthorized) {
			return nil, nil
		}
		log.Printf("[Auth] Auth check error: %v", err)
		return nil, err
	}
	a.setUser(user)
	return user, nil
}

// Login authenticates and remembers the user
func (a *Auth) Login(ctx context.Context, username, password string) (*model.User, error) {
	var resp *model.LoginResponse
	err := a.withRetry(ctx, func() error {
		r, err := a.api.Login(ctx, username, password)
		resp = r
		return err
	})
	if err != nil {
		log.Printf("[Auth] Login error: %v", err)
		return nil, err
	}
	user := resp.User
	a.setUser(&user)
	return &user, nil
}

// Logout clears local state even when the server call fails
func (a *Auth) Logout(ctx context.Context) error {
	err := a.api.Logout(ctx)
	a.setUser(nil)
	if err != nil {
		log.Printf("[Auth] Logout error: %v", err)
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
