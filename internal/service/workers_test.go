package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/repository/rdb"
	"Idea_Portal/internal/repository/redis"
)

type recordingSender struct {
	mu     sync.Mutex
	events []string
	fail   bool
}

func (r *recordingSender) send(_ context.Context, ob *model.IdeaOutbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return assert.AnError
	}
	r.events = append(r.events, ob.EventType)
	return nil
}

func TestOutboxRelayerDrain(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	idea := e.publish(t, alice, "Dark mode")
	require.NoError(t, e.ideas.Delete(ctx, admin, idea.ID))

	rec := &recordingSender{fail: true}
	relayer := NewOutboxRelayer(rdb.NewOutboxRepository(e.db), rec.send, time.Second, 10, nil)

	assert.Zero(t, relayer.DrainOnce(ctx))
	var failed []model.IdeaOutbox
	require.NoError(t, e.db.Where("status = ?", model.OutboxFailed).Find(&failed).Error)
	assert.Len(t, failed, 3)

	rec.fail = false
	assert.Equal(t, 3, relayer.DrainOnce(ctx))
	assert.Equal(t, []string{model.EventIdeaCreated, model.EventIdeaApproved, model.EventIdeaDeleted}, rec.events)
	assert.Zero(t, relayer.DrainOnce(ctx))
}

func TestOutboxRelayerGivesUpAfterMaxRetry(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.createIdea(t, alice, "Dark mode")

	rec := &recordingSender{fail: true}
	relayer := NewOutboxRelayer(rdb.NewOutboxRepository(e.db), rec.send, time.Second, 10, nil)
	for i := 0; i < 6; i++ {
		relayer.DrainOnce(ctx)
	}

	rec.fail = false
	assert.Zero(t, relayer.DrainOnce(ctx))
	assert.Empty(t, rec.events)
}

func TestVoteCountReconciler(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	drifted := e.publish(t, alice, "Drifted")
	healthy := e.publish(t, alice, "Healthy")
	_, err := e.votes.Vote(ctx, bob, drifted.ID)
	require.NoError(t, err)
	_, err = e.votes.Vote(ctx, bob, healthy.ID)
	require.NoError(t, err)
	require.NoError(t, e.db.Model(&model.Idea{}).Where("id = ?", drifted.ID).Update("vote_count", 7).Error)

	page, err := e.ideas.List(ctx, bob, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), voteCountOf(page, drifted.ID))

	rec := NewVoteCountReconciler(rdb.NewVoteCountReconcilerRepo(e.db), redis.NewDistLock(e.rdb), e.listing, time.Minute, 1, nil)
	fixed, err := rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	stored, err := e.ideaRepo.FindByID(ctx, drifted.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.VoteCount)

	// 修正后列表缓存失效
	page, err = e.ideas.List(ctx, bob, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), voteCountOf(page, drifted.ID))
	assert.False(t, e.mr.Exists("lock:"+reconcileLockName))

	fixed, err = rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}

func TestVoteCountReconcilerSkipsWhenLocked(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	idea := e.publish(t, alice, "Drifted")
	require.NoError(t, e.db.Model(&model.Idea{}).Where("id = ?", idea.ID).Update("vote_count", 3).Error)
	require.NoError(t, e.mr.Set("lock:"+reconcileLockName, "other-instance"))

	rec := NewVoteCountReconciler(rdb.NewVoteCountReconcilerRepo(e.db), redis.NewDistLock(e.rdb), e.listing, time.Minute, 10, nil)
	fixed, err := rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)

	stored, err := e.ideaRepo.FindByID(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.VoteCount)
}
