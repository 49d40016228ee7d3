package repositories

import (
	"context"
	"errors"

	"github.com/SAP-F-2025/clinic-service/internal/models"
)

// ErrInvalidCredentials is returned by SignIn for unknown users or wrong passwords
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrIdentityExists is returned by CreateIdentity when the email is already registered
var ErrIdentityExists = errors.New("identity already exists")

// IdentityChange is pushed when the Identity Store drops an identity out-of-band.
// SessionKey is empty when every session of UID is gone.
type IdentityChange struct {
	UID        string `json:"uid"`
	SessionKey string `json:"session_key,omitempty"`
}

// NewIdentity is the input to CreateIdentity
type NewIdentity struct {
	Email       string
	Password    string
	DisplayName string
}

// IdentityStore authenticates credentials and owns backend session keys
type IdentityStore interface {
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
	SignOut(ctx context.Context, identity *models.Identity) error
	// Valid reports whether the backend still recognises the session key
	Valid(ctx context.Context, identity *models.Identity) (bool, error)
	CreateIdentity(ctx context.Context, in NewIdentity) (uid string, err error)
	DeleteIdentity(ctx context.Context, uid string) error
	// RevokeAll drops every session of uid and announces it to watchers
	RevokeAll(ctx context.Context, uid string) error
	// Watch streams out-of-band changes until ctx is done
	Watch(ctx context.Context) (<-chan IdentityChange, error)
}
