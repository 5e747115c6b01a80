// Package auth is the identity provider: account registration, credential
// verification, session token issuance, and principal resolution.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidshare/backend/internal/apperr"
	"github.com/vidshare/backend/internal/models"
)

// UserStore persists accounts. Username and email uniqueness is enforced at
// the storage layer; a duplicate surfaces as apperr.ErrConflict.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	Delete(ctx context.Context, id string) error
}

// Registration carries the fields required to open an account.
type Registration struct {
	Username string
	Email    string
	Password string
}

// ProfilePatch describes a partial account update. Nil fields stay untouched.
type ProfilePatch struct {
	Username *string
	Email    *string
	Password *string
}

// Identity verifies credentials and manages account profiles.
type Identity struct {
	users    UserStore
	sessions *Manager
}

// NewIdentity constructs the identity provider.
func NewIdentity(users UserStore, sessions *Manager) *Identity {
	return &Identity{users: users, sessions: sessions}
}

// Register opens an account with a hashed password and the default storage
// quota.
func (i *Identity) Register(ctx context.Context, reg Registration) (models.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(strings.ToLower(reg.Email))
	if reg.Username == "" {
		return models.User{}, apperr.Validationf("username is required")
	}
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		return models.User{}, apperr.Validationf("a valid email address is required")
	}
	if len(reg.Password) < 8 {
		return models.User{}, apperr.Validationf("password must be at least 8 characters")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     reg.Username,
		Email:        reg.Email,
		Password:     string(hashed),
		StorageLimit: models.DefaultStorageLimit,
	}
	if err := i.users.Create(ctx, user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Login verifies the credentials and issues a session token pair. Unknown
// accounts and wrong passwords are indistinguishable to the caller.
func (i *Identity) Login(ctx context.Context, email, password string) (models.User, models.SessionTokens, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := i.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.User{}, models.SessionTokens{}, apperr.ErrUnauthenticated
		}
		return models.User{}, models.SessionTokens{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return models.User{}, models.SessionTokens{}, apperr.ErrUnauthenticated
	}

	tokens, err := i.sessions.Issue(ctx, user.ID)
	if err != nil {
		return models.User{}, models.SessionTokens{}, err
	}
	return user, tokens, nil
}

// Refresh exchanges a refresh token for a fresh pair.
func (i *Identity) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	tokens, err := i.sessions.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrRefreshTokenExpired) {
			return models.SessionTokens{}, apperr.ErrUnauthenticated
		}
		return models.SessionTokens{}, err
	}
	return tokens, nil
}

// Logout revokes the refresh token. Revoking an unknown token is a no-op.
func (i *Identity) Logout(ctx context.Context, refreshToken string) {
	i.sessions.Revoke(ctx, refreshToken)
}

// Principal resolves an access token to the principal it authenticates.
// An empty token yields Anonymous; a stale or unknown token is an error so
// callers can distinguish "no credentials" from "bad credentials".
func (i *Identity) Principal(ctx context.Context, accessToken string) (models.Principal, error) {
	if accessToken == "" {
		return models.Anonymous, nil
	}

	userID, err := i.sessions.Resolve(ctx, accessToken)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrAccessTokenExpired) {
			return models.Anonymous, apperr.ErrUnauthenticated
		}
		return models.Anonymous, err
	}

	user, err := i.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Anonymous, apperr.ErrUnauthenticated
		}
		return models.Anonymous, err
	}
	return user.Principal(), nil
}

// Profile returns an account visible to the principal: the account holder or
// staff.
func (i *Identity) Profile(ctx context.Context, p models.Principal, userID string) (models.User, error) {
	user, err := i.users.FindByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	if !p.Authenticated() {
		return models.User{}, apperr.ErrUnauthenticated
	}
	if p.ID != userID && !p.IsStaff {
		return models.User{}, apperr.ErrForbidden
	}
	return user, nil
}

// UpdateProfile applies a partial update to an account. The account holder or
// staff only; the id, staff flag, and quota are not patchable here.
func (i *Identity) UpdateProfile(ctx context.Context, p models.Principal, userID string, patch ProfilePatch) (models.User, error) {
	user, err := i.Profile(ctx, p, userID)
	if err != nil {
		return models.User{}, err
	}

	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if username == "" {
			return models.User{}, apperr.Validationf("username is required")
		}
		user.Username = username
	}
	if patch.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*patch.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return models.User{}, apperr.Validationf("a valid email address is required")
		}
		user.Email = email
	}
	if patch.Password != nil {
		if len(*patch.Password) < 8 {
			return models.User{}, apperr.Validationf("password must be at least 8 characters")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			return models.User{}, fmt.Errorf("hash password: %w", err)
		}
		user.Password = string(hashed)
	}

	if err := i.users.Update(ctx, user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// DeleteAccount removes an account. Videos the account uploaded stay behind
// with a cleared creator.
func (i *Identity) DeleteAccount(ctx context.Context, p models.Principal, userID string) error {
	if _, err := i.Profile(ctx, p, userID); err != nil {
		return err
	}
	return i.users.Delete(ctx, userID)
}
