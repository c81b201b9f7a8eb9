package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"Idea_Portal/internal/model"
)

var tracer = otel.Tracer("ideas")

// Identity 身份服务协作方：账号和密码由它负责；建号时连同档案原子写入并回填 profile.ID
type Identity interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
	CreateAccount(ctx context.Context, email, password string, profile *model.User) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

type SessionStore interface {
	Save(ctx context.Context, userID, token string) error
	Get(ctx context.Context, userID string) (string, error)
	Extend(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) error
}

type VoteStateCache interface {
	Get(ctx context.Context, ideaID, userID string) (voted bool, hit bool, err error)
	Set(ctx context.Context, ideaID, userID string, voted bool) error
	Fill(ctx context.Context, ideaID, userID string, voted bool) error
	Invalidate(ctx context.Context, ideaID, userID string) error
}

type Cooldown interface {
	Try(ctx context.Context, scope, subject string, window time.Duration) (bool, error)
	Reset(ctx context.Context, scope, subject string) error
}

type Locker interface {
	Acquire(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, token string) error
}
