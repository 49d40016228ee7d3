package casdoor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// ChangesChannel is the redis channel carrying IdentityChange notifications
const ChangesChannel = "identity:changes"

// casdoorAPI is the subset of *casdoorsdk.Client used here
type casdoorAPI interface {
	GetUserByEmail(email string) (*casdoorsdk.User, error)
	GetUserByUserId(userId string) (*casdoorsdk.User, error)
	CheckUserPassword(user *casdoorsdk.User) (bool, error)
	AddUser(user *casdoorsdk.User) (bool, error)
	DeleteUser(user *casdoorsdk.User) (bool, error)
}

// IdentityCasdoor verifies credentials against Casdoor and keeps backend
// session keys in redis, so a session can be revoked from any instance.
type IdentityCasdoor struct {
	client     casdoorAPI
	redis      *redis.Client
	config     CasdoorConfig
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewIdentityCasdoor(config CasdoorConfig, redisClient *redis.Client, sessionTTL time.Duration, logger *slog.Logger) *IdentityCasdoor {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)
	return newIdentityCasdoor(client, config, redisClient, sessionTTL, logger)
}

func newIdentityCasdoor(client casdoorAPI, config CasdoorConfig, redisClient *redis.Client, sessionTTL time.Duration, logger *slog.Logger) *IdentityCasdoor {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityCasdoor{
		client:     client,
		redis:      redisClient,
		config:     config,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

var _ repositories.IdentityStore = (*IdentityCasdoor)(nil)

func sessionKey(key string) string {
	return "session:" + key
}

func userSessionsKey(uid string) string {
	return "user_sessions:" + uid
}

func (i *IdentityCasdoor) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	user, err := i.client.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email from Casdoor: %w", err)
	}
	if user == nil || user.IsDeleted {
		return nil, repositories.ErrInvalidCredentials
	}

	check := *user
	check.Password = password
	ok, err := i.client.CheckUserPassword(&check)
	if err != nil {
		return nil, fmt.Errorf("failed to check password with Casdoor: %w", err)
	}
	if !ok {
		return nil, repositories.ErrInvalidCredentials
	}
	if user.IsForbidden {
		return nil, fmt.Errorf("account disabled: %w", repositories.ErrInvalidCredentials)
	}

	identity := &models.Identity{
		UID:        user.Id,
		Email:      user.Email,
		SessionKey: uuid.NewString(),
	}

	pipe := i.redis.TxPipeline()
	pipe.Set(ctx, sessionKey(identity.SessionKey), identity.UID, i.sessionTTL)
	pipe.SAdd(ctx, userSessionsKey(identity.UID), identity.SessionKey)
	pipe.Expire(ctx, userSessionsKey(identity.UID), i.sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return identity, nil
}

func (i *IdentityCasdoor) SignOut(ctx context.Context, identity *models.Identity) error {
	if identity == nil || identity.SessionKey == "" {
		return nil
	}
	pipe := i.redis.TxPipeline()
	pipe.Del(ctx, sessionKey(identity.SessionKey))
	pipe.SRem(ctx, userSessionsKey(identity.UID), identity.SessionKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop session: %w", err)
	}
	return nil
}

func (i *IdentityCasdoor) Valid(ctx context.Context, identity *models.Identity) (bool, error) {
	if identity == nil || identity.SessionKey == "" {
		return false, nil
	}
	uid, err := i.redis.Get(ctx, sessionKey(identity.SessionKey)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read session: %w", err)
	}
	return uid == identity.UID, nil
}

func (i *IdentityCasdoor) CreateIdentity(ctx context.Context, in repositories.NewIdentity) (string, error) {
	existing, err := i.client.GetUserByEmail(in.Email)
	if err != nil {
		return "", fmt.Errorf("failed to check email with Casdoor: %w", err)
	}
	if existing != nil && !existing.IsDeleted {
		return "", repositories.ErrIdentityExists
	}

	uid := uuid.NewString()
	user := &casdoorsdk.User{
		Owner:       i.config.OrganizationName,
		Name:        uid,
		Id:          uid,
		Type:        "normal-user",
		Password:    in.Password,
		DisplayName: in.DisplayName,
		Email:       in.Email,
		CreatedTime: time.Now().UTC().Format(time.RFC3339),
	}

	ok, err := i.client.AddUser(user)
	if err != nil {
		return "", fmt.Errorf("failed to add user to Casdoor: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("casdoor rejected user %s", in.Email)
	}
	return uid, nil
}

func (i *IdentityCasdoor) DeleteIdentity(ctx context.Context, uid string) error {
	user, err := i.client.GetUserByUserId(uid)
	if err != nil {
		return fmt.Errorf("failed to get user from Casdoor: %w", err)
	}
	if user == nil {
		return nil
	}
	if _, err := i.client.DeleteUser(user); err != nil {
		return fmt.Errorf("failed to delete user from Casdoor: %w", err)
	}
	return nil
}

func (i *IdentityCasdoor) RevokeAll(ctx context.Context, uid string) error {
	keys, err := i.redis.SMembers(ctx, userSessionsKey(uid)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	pipe := i.redis.TxPipeline()
	for _, k := range keys {
		pipe.Del(ctx, sessionKey(k))
	}
	pipe.Del(ctx, userSessionsKey(uid))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	return i.publish(ctx, repositories.IdentityChange{UID: uid})
}

func (i *IdentityCasdoor) publish(ctx context.Context, change repositories.IdentityChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	if err := i.redis.Publish(ctx, ChangesChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish identity change: %w", err)
	}
	return nil
}

// Watch subscribes to identity changes published by any instance
func (i *IdentityCasdoor) Watch(ctx context.Context) (<-chan repositories.IdentityChange, error) {
	sub := i.redis.Subscribe(ctx, ChangesChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to identity changes: %w", err)
	}

	out := make(chan repositories.IdentityChange, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change repositories.IdentityChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					i.logger.Warn("Ignoring malformed identity change", "error", err)
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
