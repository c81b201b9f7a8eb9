package rdb

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
)

func publicIdea(i *model.Idea) {
	i.Status = model.StatusUnderConsideration
	i.IsPublic = true
}

func TestVoteRepositoryVoteAndUnvote(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ideas := NewIdeaRepository(db)
	votes := NewVoteRepository(db)
	idea := seedIdea(t, ideas, publicIdea)

	stamp := baseTime.Add(time.Hour)
	got, err := votes.Vote(ctx, idea.ID, "u1", stamp, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.VoteCount)
	assert.True(t, got.UpdatedAt.Equal(stamp))

	voted, err := votes.HasVoted(ctx, idea.ID, "u1")
	require.NoError(t, err)
	assert.True(t, voted)

	_, err = votes.Vote(ctx, idea.ID, "u1", stamp, nil, nil)
	assert.ErrorIs(t, err, pkg.ErrAlreadyVoted)

	got, err = votes.Unvote(ctx, idea.ID, "u1", stamp, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, got.VoteCount)

	_, err = votes.Unvote(ctx, idea.ID, "u1", stamp, nil, nil)
	assert.ErrorIs(t, err, pkg.ErrNotVoted)

	stored, err := ideas.FindByID(ctx, idea.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.VoteCount)
}

func TestVoteRepositoryCheckRunsBeforeWrite(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ideas := NewIdeaRepository(db)
	votes := NewVoteRepository(db)
	idea := seedIdea(t, ideas, nil)

	_, err := votes.Vote(ctx, idea.ID, "u1", baseTime, func(*model.Idea) error { return pkg.ErrNotFound }, nil)
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	voted, err := votes.HasVoted(ctx, idea.ID, "u1")
	require.NoError(t, err)
	assert.False(t, voted)

	_, err = votes.Vote(ctx, "missing", "u1", baseTime, nil, nil)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestVoteRepositoryUnvoteFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ideas := NewIdeaRepository(db)
	votes := NewVoteRepository(db)
	idea := seedIdea(t, ideas, publicIdea)

	_, err := votes.Vote(ctx, idea.ID, "u1", baseTime, nil, nil)
	require.NoError(t, err)
	// 人为制造计数漂移
	require.NoError(t, db.Model(&model.Idea{}).Where("id = ?", idea.ID).UpdateColumn("vote_count", 0).Error)

	got, err := votes.Unvote(ctx, idea.ID, "u1", baseTime, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, got.VoteCount)
}

func TestVoteRepositoryConcurrentVotes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ideas := NewIdeaRepository(db)
	votes := NewVoteRepository(db)
	idea := seedIdea(t, ideas, publicIdea)

	const voters = 20
	var wg sync.WaitGroup
	errs := make(chan error, voters*2)
	for i := 0; i < voters; i++ {
		wg.Add(2)
		user := fmt.Sprintf("u%d", i)
		// 同一用户并发投两次，只能成功一次
		for j := 0; j < 2; j++ {
			go func() {
				defer wg.Done()
				_, err := votes.Vote(ctx, idea.ID, user, baseTime, nil, nil)
				errs <- err
			}()
		}
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, pkg.ErrAlreadyVoted):
			dup++
		}
	}
	assert.Equal(t, voters, ok)
	assert.Equal(t, voters, dup)

	stored, err := ideas.FindByID(ctx, idea.ID)
	require.NoError(t, err)
	actual, err := votes.CountForIdea(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(voters), stored.VoteCount)
	assert.Equal(t, stored.VoteCount, actual)
}

func TestVoteRepositoryVotedIdeaIDs(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ideas := NewIdeaRepository(db)
	votes := NewVoteRepository(db)
	first := seedIdea(t, ideas, publicIdea)
	second := seedIdea(t, ideas, publicIdea)

	_, err := votes.Vote(ctx, first.ID, "u1", baseTime, nil, nil)
	require.NoError(t, err)
	_, err = votes.Vote(ctx, second.ID, "u1", baseTime.Add(time.Second), nil, nil)
	require.NoError(t, err)

	got, err := votes.VotedIdeaIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID, first.ID}, got)
}

func TestVoteCountReconcilerRepo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ideas := NewIdeaRepository(db)
	votes := NewVoteRepository(db)
	rec := NewVoteCountReconcilerRepo(db)
	idea := seedIdea(t, ideas, publicIdea)

	_, err := votes.Vote(ctx, idea.ID, "u1", baseTime, nil, nil)
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.Idea{}).Where("id = ?", idea.ID).UpdateColumn("vote_count", 7).Error)

	list, last, err := rec.ReconcileList(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, idea.ID, last)
	assert.Equal(t, int64(7), list[0].VoteCount)

	actual, err := rec.RealVotes(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), actual)

	stored, actual, changed, err := rec.FixVoteCount(ctx, idea.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(7), stored)
	assert.Equal(t, int64(1), actual)

	_, _, changed, err = rec.FixVoteCount(ctx, idea.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := ideas.FindByID(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.VoteCount)

	_, _, _, err = rec.FixVoteCount(ctx, "missing")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

// 扫描之后发生的一投一撤不能让对账把正确的计数改错
func TestVoteCountReconcilerRepoInterleavedVotes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ideas := NewIdeaRepository(db)
	votes := NewVoteRepository(db)
	rec := NewVoteCountReconcilerRepo(db)
	idea := seedIdea(t, ideas, publicIdea)

	list, _, err := rec.ReconcileList(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(0), list[0].VoteCount)

	_, err = votes.Vote(ctx, idea.ID, "u1", baseTime, nil, nil)
	require.NoError(t, err)
	actual, err := rec.RealVotes(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), actual)
	_, err = votes.Unvote(ctx, idea.ID, "u1", baseTime, nil, nil)
	require.NoError(t, err)

	stored, actual, changed, err := rec.FixVoteCount(ctx, idea.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int64(0), stored)
	assert.Equal(t, int64(0), actual)

	got, err := ideas.FindByID(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.VoteCount)
	n, err := votes.CountForIdea(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.VoteCount)
}

func TestVoteRepositoryWrittenHook(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ideas := NewIdeaRepository(db)
	votes := NewVoteRepository(db)
	idea := seedIdea(t, ideas, publicIdea)

	var seen []bool
	record := func(voted bool) { seen = append(seen, voted) }

	_, err := votes.Vote(ctx, idea.ID, "u1", baseTime, nil, record)
	require.NoError(t, err)
	_, err = votes.Vote(ctx, idea.ID, "u1", baseTime, nil, record)
	assert.ErrorIs(t, err, pkg.ErrAlreadyVoted)
	_, err = votes.Unvote(ctx, idea.ID, "u1", baseTime, nil, record)
	require.NoError(t, err)
	_, err = votes.Unvote(ctx, idea.ID, "u1", baseTime, nil, record)
	assert.ErrorIs(t, err, pkg.ErrNotVoted)

	assert.Equal(t, []bool{true, false}, seen)
}
