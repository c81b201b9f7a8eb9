package rdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
)

func strPtr(s string) *string { return &s }

func TestCommentRepositoryThreading(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ideas := NewIdeaRepository(db)
	comments := NewCommentRepository(db)
	idea := seedIdea(t, ideas, publicIdea)
	other := seedIdea(t, ideas, publicIdea)

	top := &model.Comment{ID: "top", IdeaID: idea.ID, AuthorID: "u1", Content: "first", CreatedAt: baseTime}
	require.NoError(t, comments.Create(ctx, top, nil))
	reply := &model.Comment{ID: "reply", IdeaID: idea.ID, ParentID: strPtr("top"), AuthorID: "u2", Content: "second", CreatedAt: baseTime.Add(time.Second)}
	require.NoError(t, comments.Create(ctx, reply, nil))

	err := comments.Create(ctx, &model.Comment{ID: "nested", IdeaID: idea.ID, ParentID: strPtr("reply"), AuthorID: "u3", Content: "x"}, nil)
	assert.ErrorIs(t, err, pkg.ErrValidation)

	err = comments.Create(ctx, &model.Comment{ID: "cross", IdeaID: other.ID, ParentID: strPtr("top"), AuthorID: "u3", Content: "x"}, nil)
	assert.ErrorIs(t, err, pkg.ErrValidation)

	err = comments.Create(ctx, &model.Comment{ID: "ghost", IdeaID: idea.ID, ParentID: strPtr("missing"), AuthorID: "u3", Content: "x"}, nil)
	assert.ErrorIs(t, err, pkg.ErrValidation)

	list, err := comments.ListByIdea(ctx, idea.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "top", list[0].ID)
	assert.Equal(t, "reply", list[1].ID)

	stored, err := ideas.FindByID(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.CommentCount)
}

func TestCommentRepositorySoftDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ideas := NewIdeaRepository(db)
	comments := NewCommentRepository(db)
	idea := seedIdea(t, ideas, publicIdea)
	require.NoError(t, comments.Create(ctx, &model.Comment{ID: "c1", IdeaID: idea.ID, AuthorID: "u1", Content: "hello"}, nil))

	err := comments.SoftDelete(ctx, idea.ID, "c1", baseTime, func(*model.Comment) error { return pkg.ErrForbidden })
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	require.NoError(t, comments.SoftDelete(ctx, idea.ID, "c1", baseTime, nil))
	// 重复删除不会再次扣减计数
	require.NoError(t, comments.SoftDelete(ctx, idea.ID, "c1", baseTime, nil))

	stored, err := ideas.FindByID(ctx, idea.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.CommentCount)

	c, err := comments.FindByID(ctx, idea.ID, "c1")
	require.NoError(t, err)
	assert.True(t, c.IsDeleted)

	_, err = comments.UpdateContent(ctx, idea.ID, "c1", "again", baseTime, nil)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestCommentRepositoryUpdateContent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ideas := NewIdeaRepository(db)
	comments := NewCommentRepository(db)
	idea := seedIdea(t, ideas, publicIdea)
	require.NoError(t, comments.Create(ctx, &model.Comment{ID: "c1", IdeaID: idea.ID, AuthorID: "u1", Content: "hello"}, nil))

	c, err := comments.UpdateContent(ctx, idea.ID, "c1", "edited", baseTime, nil)
	require.NoError(t, err)
	assert.Equal(t, "edited", c.Content)

	_, err = comments.UpdateContent(ctx, "other-idea", "c1", "edited", baseTime, nil)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}
