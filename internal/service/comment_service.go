package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
	"Idea_Portal/internal/repository/rdb"
)

type CommentService struct {
	ideas    *rdb.IdeaRepository
	comments *rdb.CommentRepository
	listing  *ListingCache
	log      *slog.Logger
	now      func() time.Time
}

func NewCommentService(ideas *rdb.IdeaRepository, comments *rdb.CommentRepository, listing *ListingCache, log *slog.Logger) *CommentService {
	if log == nil {
		log = slog.Default()
	}
	return &CommentService{
		ideas:    ideas,
		comments: comments,
		listing:  listing,
		log:      log,
		now:      time.Now,
	}
}

type CommentView struct {
	model.Comment
	ContentHTML string `json:"contentHtml"`
}

func toCommentView(c model.Comment) CommentView {
	if c.IsDeleted {
		c.Content = ""
		return CommentView{Comment: c}
	}
	return CommentView{Comment: c, ContentHTML: pkg.RenderMarkdown(c.Content)}
}

func (s *CommentService) Create(ctx context.Context, v Viewer, ideaID, content string, parentID *string) (*CommentView, error) {
	ctx, span := tracer.Start(ctx, "Comment.Service.Create")
	defer span.End()

	if v.Anonymous() {
		return nil, pkg.ErrUnauthorized
	}
	content, err := validateComment(content)
	if err != nil {
		return nil, err
	}
	if parentID != nil {
		p := strings.TrimSpace(*parentID)
		if p == "" {
			parentID = nil
		} else {
			parentID = &p
		}
	}
	now := s.now()
	c := &model.Comment{
		ID:         pkg.NewID(),
		IdeaID:     ideaID,
		ParentID:   parentID,
		AuthorID:   v.UserID,
		AuthorName: v.Name,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.comments.Create(ctx, c, visibleTo(v)); err != nil {
		return nil, err
	}
	s.listing.Purge()
	view := toCommentView(*c)
	return &view, nil
}

// List 已删除的评论保留占位，内容置空
func (s *CommentService) List(ctx context.Context, v Viewer, ideaID string) ([]CommentView, error) {
	ctx, span := tracer.Start(ctx, "Comment.Service.List")
	defer span.End()

	if err := s.requireVisibleIdea(ctx, v, ideaID); err != nil {
		return nil, err
	}
	rows, err := s.comments.ListByIdea(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	out := make([]CommentView, 0, len(rows))
	for _, c := range rows {
		out = append(out, toCommentView(c))
	}
	return out, nil
}

// Update 只有作者本人可以编辑
func (s *CommentService) Update(ctx context.Context, v Viewer, ideaID, commentID, content string) (*CommentView, error) {
	if err := s.requireVisibleIdea(ctx, v, ideaID); err != nil {
		return nil, err
	}
	content, err := validateComment(content)
	if err != nil {
		return nil, err
	}
	c, err := s.comments.UpdateContent(ctx, ideaID, commentID, content, s.now(), func(c *model.Comment) error {
		if c.AuthorID != v.UserID {
			return pkg.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := toCommentView(*c)
	return &view, nil
}

// Delete 作者或管理员可删除
func (s *CommentService) Delete(ctx context.Context, v Viewer, ideaID, commentID string) error {
	if err := s.requireVisibleIdea(ctx, v, ideaID); err != nil {
		return err
	}
	err := s.comments.SoftDelete(ctx, ideaID, commentID, s.now(), func(c *model.Comment) error {
		if c.AuthorID != v.UserID && !v.IsAdmin() {
			return pkg.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.listing.Purge()
	return nil
}

func (s *CommentService) requireVisibleIdea(ctx context.Context, v Viewer, ideaID string) error {
	if v.Anonymous() {
		return pkg.ErrUnauthorized
	}
	idea, err := s.ideas.FindByID(ctx, ideaID)
	if err != nil {
		return err
	}
	if !CanView(v, idea) {
		return pkg.ErrNotFound
	}
	return nil
}
