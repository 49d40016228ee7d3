package repositories

import (
	"context"
	"errors"
)

// ErrNotFound is returned by every repository when the addressed record does not exist
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a primary key is already taken
var ErrDuplicate = errors.New("record already exists")

// Repository groups the Document Store collections
type Repository interface {
	User() UserRepository
	Student() StudentRepository
	Station() StationRepository
	SessionCode() SessionCodeRepository
	Chat() ChatRepository

	// WithTransaction runs fn against a repository bound to one database transaction
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
