package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
	"Idea_Portal/internal/service"
)

const (
	ContextUserIDKey = "user_id"
	ContextViewerKey = "viewer"
)

// ProfileLoader 按用户ID读取档案，用于获取最新的角色和显示名
type ProfileLoader func(ctx context.Context, userID string) (*model.User, error)

type Auth struct {
	jwt      *pkg.JWTManager
	sessions service.SessionStore
	load     ProfileLoader
	profiles *gocache.Cache
}

func NewAuth(jwt *pkg.JWTManager, sessions service.SessionStore, load ProfileLoader, profileTTL time.Duration) *Auth {
	if profileTTL <= 0 {
		profileTTL = 30 * time.Second
	}
	return &Auth{
		jwt:      jwt,
		sessions: sessions,
		load:     load,
		profiles: gocache.New(profileTTL, 2*profileTTL),
	}
}

// Forget 角色变更或删除用户后清掉本地档案缓存
func (a *Auth) Forget(userID string) {
	a.profiles.Delete(userID)
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "msg": msg})
}

func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization format")
			return
		}
		tokenStr := strings.TrimSpace(parts[1])

		claims, err := a.jwt.ParseAccess(tokenStr)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		ctx := c.Request.Context()
		// redis校验是否是当前有效的token
		origin, err := a.sessions.Get(ctx, claims.UserID)
		if err != nil || origin != tokenStr {
			abortUnauthorized(c, "account has been logged in elsewhere")
			return
		}

		user, err := a.profile(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, pkg.ErrNotFound) {
				abortUnauthorized(c, "account no longer exists")
				return
			}
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"code": "upstream_error", "msg": "profile lookup failed"})
			return
		}

		// 校验通过后更新过期时间
		if err := a.sessions.Extend(ctx, claims.UserID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"code": "upstream_error", "msg": "session store unavailable"})
			return
		}

		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextViewerKey, service.Viewer{UserID: user.ID, Name: user.DisplayName, Role: user.Role})
		c.Next()
	}
}

func (a *Auth) profile(ctx context.Context, userID string) (*model.User, error) {
	if v, ok := a.profiles.Get(userID); ok {
		return v.(*model.User), nil
	}
	user, err := a.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	a.profiles.SetDefault(userID, user)
	return user, nil
}

// RequireAdmin 必须挂在 Auth 之后
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		v := ViewerFrom(c)
		if v.Anonymous() {
			abortUnauthorized(c, "unauthorized")
			return
		}
		if !v.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "forbidden", "msg": "admin role required"})
			return
		}
		c.Next()
	}
}

func ViewerFrom(c *gin.Context) service.Viewer {
	if v, ok := c.Get(ContextViewerKey); ok {
		if viewer, ok := v.(service.Viewer); ok {
			return viewer
		}
	}
	return service.Viewer{}
}
