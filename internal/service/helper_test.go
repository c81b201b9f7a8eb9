package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"Idea_Portal/internal/config"
	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
	"Idea_Portal/internal/repository/rdb"
	"Idea_Portal/internal/repository/redis"
)

var (
	admin = Viewer{UserID: "admin", Name: "Grace Admin", Role: model.RoleAdmin}
	alice = Viewer{UserID: "alice", Name: "Alice A", Role: model.RoleClient}
	bob   = Viewer{UserID: "bob", Name: "Bob B", Role: model.RoleClient}
	anon  = Viewer{}
)

type fakeSender struct {
	mu   sync.Mutex
	msgs []pkg.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg pkg.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeSender) sent() []pkg.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pkg.Message(nil), f.msgs...)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	db       *gorm.DB
	mr       *miniredis.Miniredis
	rdb      *goredis.Client
	clock    *clock
	sender   *fakeSender
	listing  *ListingCache
	ideaRepo *rdb.IdeaRepository
	voteRepo *rdb.VoteRepository
	userRepo *rdb.UserRepository

	ideas    *IdeaService
	votes    *VoteService
	mod      *ModerationService
	comments *CommentService
	verify   *VerificationService
	users    *UserService
	jwt      *pkg.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
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

	e := &testEnv{
		db:       db,
		mr:       mr,
		rdb:      client,
		clock:    &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		sender:   &fakeSender{},
		listing:  NewListingCache(64, time.Minute),
		ideaRepo: rdb.NewIdeaRepository(db),
		voteRepo: rdb.NewVoteRepository(db),
		userRepo: rdb.NewUserRepository(db),
		jwt:      pkg.NewJWTManager("access", "refresh", time.Minute, time.Hour),
	}
	notifier := NewNotifier(e.sender, "team@example.com", "https://ideas.example.com/", nil)
	e.ideas = NewIdeaService(e.ideaRepo, e.listing, notifier, nil)
	e.ideas.now = e.clock.Now
	e.votes = NewVoteService(e.ideaRepo, e.voteRepo, redis.NewVoteCacheRepository(client), e.listing, nil)
	e.votes.now = e.clock.Now
	e.mod = NewModerationService(e.ideaRepo, e.userRepo, e.listing, nil)
	e.mod.now = e.clock.Now
	e.comments = NewCommentService(e.ideaRepo, rdb.NewCommentRepository(db), e.listing, nil)
	e.comments.now = e.clock.Now
	e.verify = NewVerificationService(rdb.NewVerificationRepository(db), redis.NewCooldownRepository(client), e.sender, "https://ideas.example.com", time.Minute, nil)
	e.verify.now = e.clock.Now
	identity := NewLocalIdentity(rdb.NewCredentialRepository(db), bcrypt.MinCost)
	e.users = NewUserService(e.userRepo, identity, e.verify, redis.NewSessionRepository(client, time.Minute), e.jwt, e.listing, nil)
	e.users.now = e.clock.Now
	return e
}

func voteCountOf(page *IdeaPage, id string) int64 {
	for _, idea := range page.Items {
		if idea.ID == id {
			return idea.VoteCount
		}
	}
	return -1
}

// createIdea 以 v 身份提交想法，每次推进时钟保证创建时间有序
func (e *testEnv) createIdea(t *testing.T, v Viewer, title string) *model.Idea {
	t.Helper()
	e.clock.Advance(time.Second)
	idea, err := e.ideas.Create(context.Background(), v, CreateIdeaInput{Title: title, Description: "A sufficiently long description"})
	require.NoError(t, err)
	return idea
}

// publish 创建并审核通过，使其对所有用户可见
func (e *testEnv) publish(t *testing.T, v Viewer, title string) *model.Idea {
	t.Helper()
	idea := e.createIdea(t, v, title)
	approved, err := e.mod.Approve(context.Background(), admin, idea.ID)
	require.NoError(t, err)
	return approved
}
