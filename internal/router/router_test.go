package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"Idea_Portal/internal/config"
	"Idea_Portal/internal/middleware"
	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
	"Idea_Portal/internal/repository/rdb"
	"Idea_Portal/internal/repository/redis"
	"Idea_Portal/internal/service"
)

const password = "correct horse"

type outbox struct {
	mu   sync.Mutex
	msgs []pkg.Message
}

func (o *outbox) Send(_ context.Context, msg pkg.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) last() pkg.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.msgs[len(o.msgs)-1]
}

type app struct {
	engine   *gin.Engine
	users    *rdb.UserRepository
	identity *service.LocalIdentity
	mail     *outbox
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := rdb.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, rdb.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mail := &outbox{}
	jwt := pkg.NewJWTManager("access", "refresh", time.Minute, time.Hour)
	listing := service.NewListingCache(64, time.Minute)
	ideaRepo := rdb.NewIdeaRepository(db)
	userRepo := rdb.NewUserRepository(db)
	sessions := redis.NewSessionRepository(client, time.Minute)
	identity := service.NewLocalIdentity(rdb.NewCredentialRepository(db), bcrypt.MinCost)
	verify := service.NewVerificationService(rdb.NewVerificationRepository(db), redis.NewCooldownRepository(client), mail, "https://ideas.example.com", time.Minute, nil)

	deps := Deps{
		Ideas:        service.NewIdeaService(ideaRepo, listing, service.NewNotifier(mail, "team@example.com", "https://ideas.example.com", nil), nil),
		Votes:        service.NewVoteService(ideaRepo, rdb.NewVoteRepository(db), redis.NewVoteCacheRepository(client), listing, nil),
		Moderation:   service.NewModerationService(ideaRepo, userRepo, listing, nil),
		Comments:     service.NewCommentService(ideaRepo, rdb.NewCommentRepository(db), listing, nil),
		Verification: verify,
		Users:        service.NewUserService(userRepo, identity, verify, sessions, jwt, listing, nil),
		Auth:         middleware.NewAuth(jwt, sessions, userRepo.FindByID, time.Minute),
		Health: func(ctx context.Context) error {
			if err := rdb.Ping(ctx, db); err != nil {
				return err
			}
			return client.Ping(ctx).Err()
		},
	}
	return &app{engine: InitRouter(deps), users: userRepo, identity: identity, mail: mail}
}

// seedUser 直接写入账号和档案
func (a *app) seedUser(t *testing.T, email string, role model.Role) string {
	t.Helper()
	ctx := context.Background()
	user := &model.User{
		Email:       email,
		DisplayName: email,
		Role:        role,
		CreatedAt:   time.Now(),
		LastLoginAt: time.Now(),
	}
	require.NoError(t, a.identity.CreateAccount(ctx, email, password, user))
	return user.ID
}

func (a *app) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func (a *app) login(t *testing.T, email string) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, body)
	return body["accessToken"].(string)
}

func TestIdeaLifecycleOverHTTP(t *testing.T) {
	a := newApp(t)
	a.seedUser(t, "admin@example.com", model.RoleAdmin)
	a.seedUser(t, "u1@example.com", model.RoleClient)
	a.seedUser(t, "u2@example.com", model.RoleClient)
	adminTok := a.login(t, "admin@example.com")
	u1 := a.login(t, "u1@example.com")
	u2 := a.login(t, "u2@example.com")

	status, body := a.do(t, http.MethodPost, "/api/ideas", u1, gin.H{"title": "Dark mode", "description": "Add a dark theme"})
	require.Equal(t, http.StatusCreated, status, body)
	id := body["id"].(string)
	assert.Equal(t, "private", body["status"])
	assert.Equal(t, false, body["isPublic"])
	assert.Equal(t, "New Idea Submitted: Dark mode", a.mail.last().Subject)

	status, body = a.do(t, http.MethodGet, "/api/ideas/"+id, u2, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])

	status, _ = a.do(t, http.MethodPost, "/api/admin/ideas/"+id+"/approve", u2, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = a.do(t, http.MethodPost, "/api/admin/ideas/"+id+"/approve", adminTok, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "needs_review", body["status"])
	assert.Equal(t, true, body["isPublic"])

	status, body = a.do(t, http.MethodPost, "/api/ideas/"+id+"/vote", u2, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["voteCount"])
	status, body = a.do(t, http.MethodPost, "/api/ideas/"+id+"/vote", u2, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_voted", body["code"])

	status, body = a.do(t, http.MethodGet, "/api/ideas/"+id+"/vote", u2, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["voted"])

	status, body = a.do(t, http.MethodPost, "/api/admin/ideas/bulk/reject", adminTok, gin.H{"ids": []string{id, "zzz"}})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, []any{id}, body["succeeded"])
	failed := body["failed"].([]any)
	require.Len(t, failed, 1)
	assert.Equal(t, "zzz", failed[0].(map[string]any)["id"])

	status, body = a.do(t, http.MethodGet, "/api/ideas/"+id, adminTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "wont_implement", body["status"])
	assert.EqualValues(t, 1, body["voteCount"])

	status, _ = a.do(t, http.MethodGet, "/api/ideas?status=wont_implement", u2, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, body = a.do(t, http.MethodGet, "/api/ideas?status=wont_implement", adminTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])
}

func TestCommentsAndStatsOverHTTP(t *testing.T) {
	a := newApp(t)
	a.seedUser(t, "admin@example.com", model.RoleAdmin)
	a.seedUser(t, "u1@example.com", model.RoleClient)
	adminTok := a.login(t, "admin@example.com")
	u1 := a.login(t, "u1@example.com")

	_, body := a.do(t, http.MethodPost, "/api/ideas", u1, gin.H{"title": "Export", "description": "Export ideas to CSV"})
	id := body["id"].(string)

	status, body := a.do(t, http.MethodPost, "/api/ideas/"+id+"/comments", u1, gin.H{"content": "*first*"})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Contains(t, body["contentHtml"], "<em>first</em>")
	cid := body["id"].(string)

	status, _ = a.do(t, http.MethodPatch, "/api/ideas/"+id+"/comments/"+cid, adminTok, gin.H{"content": "edited"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = a.do(t, http.MethodDelete, "/api/ideas/"+id+"/comments/"+cid, adminTok, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = a.do(t, http.MethodGet, "/api/admin/stats", adminTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["totalIdeas"])
	assert.EqualValues(t, 1, body["pendingReviews"])
	assert.EqualValues(t, 2, body["totalUsers"])

	status, body = a.do(t, http.MethodPost, "/api/admin/ideas/"+id+"/status", adminTok, gin.H{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body["code"])
}

var tokenPattern = regexp.MustCompile(`token=([0-9a-f-]+)`)

func TestRegistrationOverHTTP(t *testing.T) {
	a := newApp(t)

	status, body := a.do(t, http.MethodPost, "/api/verification/send", "", gin.H{"email": "ada@example.com", "firstName": "Ada", "lastName": "Lovelace"})
	require.Equal(t, http.StatusOK, status, body)
	m := tokenPattern.FindStringSubmatch(a.mail.last().Text)
	require.Len(t, m, 2)
	token := m[1]

	status, body = a.do(t, http.MethodPost, "/api/verification/verify", "", gin.H{"token": token})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ada@example.com", body["email"])

	status, body = a.do(t, http.MethodPost, "/api/user/register", "", gin.H{"token": token, "password": password})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "client", body["role"])

	status, body = a.do(t, http.MethodPost, "/api/user/register", "", gin.H{"token": token, "password": password})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_used", body["code"])

	access := a.login(t, "ada@example.com")
	status, body = a.do(t, http.MethodGet, "/api/auth/me", access, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ada Lovelace", body["displayName"])

	status, _ = a.do(t, http.MethodPost, "/api/auth/logout", access, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = a.do(t, http.MethodGet, "/api/auth/me", access, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuthRequired(t *testing.T) {
	a := newApp(t)
	status, body := a.do(t, http.MethodGet, "/api/ideas", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body["code"])

	status, _ = a.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": "nobody@example.com", "password": password})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)
	status, body := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ideas_http_request_duration_seconds")
}
