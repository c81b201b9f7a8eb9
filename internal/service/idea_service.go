package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
	"Idea_Portal/internal/repository/rdb"
)

type IdeaService struct {
	ideas    *rdb.IdeaRepository
	listing  *ListingCache
	notifier *Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewIdeaService(ideas *rdb.IdeaRepository, listing *ListingCache, notifier *Notifier, log *slog.Logger) *IdeaService {
	if log == nil {
		log = slog.Default()
	}
	return &IdeaService{
		ideas:    ideas,
		listing:  listing,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

type CreateIdeaInput struct {
	Title       string
	Description string
}

// UpdateIdeaInput 只包含允许修改的字段，nil 表示不修改
type UpdateIdeaInput struct {
	Title       *string
	Description *string
	IsPublic    *bool
	IsPinned    *bool
}

type ListParams struct {
	Status string
	Sort   string
	Pinned bool
	Mine   bool
	Query  string
	Limit  int
	Offset int
}

type IdeaPage struct {
	Items  []model.Idea `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// IdeaDetail 详情页附带渲染后的描述
type IdeaDetail struct {
	model.Idea
	DescriptionHTML string `json:"descriptionHtml"`
}

func (s *IdeaService) Create(ctx context.Context, v Viewer, in CreateIdeaInput) (*model.Idea, error) {
	ctx, span := tracer.Start(ctx, "Idea.Service.Create")
	defer span.End()

	if v.Anonymous() {
		return nil, pkg.ErrUnauthorized
	}
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	desc, err := validateDescription(in.Description)
	if err != nil {
		return nil, err
	}

	now := s.now()
	idea := &model.Idea{
		ID:               pkg.NewID(),
		Title:            title,
		Description:      desc,
		AuthorID:         v.UserID,
		AuthorName:       v.Name,
		Status:           model.StatusPrivate,
		IsPublic:         false,
		IsPinned:         false,
		CreatedAt:        now,
		UpdatedAt:        now,
		LastStatusUpdate: now,
	}
	if err := s.ideas.Create(ctx, idea); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.listing.Purge()
	s.log.InfoContext(ctx, "idea created", "idea_id", idea.ID, "author_id", v.UserID)

	s.notifier.IdeaSubmitted(ctx, idea)
	return idea, nil
}

// Get 看不到的想法一律返回 NotFound
func (s *IdeaService) Get(ctx context.Context, v Viewer, id string) (*IdeaDetail, error) {
	ctx, span := tracer.Start(ctx, "Idea.Service.Get")
	defer span.End()

	if v.Anonymous() {
		return nil, pkg.ErrUnauthorized
	}
	idea, err := s.ideas.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(v, idea) {
		return nil, pkg.ErrNotFound
	}
	return &IdeaDetail{Idea: *idea, DescriptionHTML: pkg.RenderMarkdown(idea.Description)}, nil
}

func (s *IdeaService) Update(ctx context.Context, v Viewer, id string, in UpdateIdeaInput) (*model.Idea, error) {
	ctx, span := tracer.Start(ctx, "Idea.Service.Update")
	defer span.End()

	if v.Anonymous() {
		return nil, pkg.ErrUnauthorized
	}
	updates := map[string]any{}
	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		updates["title"] = title
	}
	if in.Description != nil {
		desc, err := validateDescription(*in.Description)
		if err != nil {
			return nil, err
		}
		updates["description"] = desc
	}
	if !v.IsAdmin() && (in.IsPublic != nil || in.IsPinned != nil) {
		return nil, pkg.ErrForbidden
	}
	if in.IsPublic != nil {
		updates["is_public"] = *in.IsPublic
	}
	if in.IsPinned != nil {
		updates["is_pinned"] = *in.IsPinned
	}

	idea, err := s.ideas.Modify(ctx, id, func(idea *model.Idea) (map[string]any, string, error) {
		if err := authorizeAuthorEdit(v, idea); err != nil {
			return nil, "", err
		}
		updates["updated_at"] = s.now()
		return updates, "", nil
	})
	if err != nil {
		return nil, err
	}
	s.listing.Purge()
	return idea, nil
}

func (s *IdeaService) Delete(ctx context.Context, v Viewer, id string) error {
	ctx, span := tracer.Start(ctx, "Idea.Service.Delete")
	defer span.End()

	if v.Anonymous() {
		return pkg.ErrUnauthorized
	}
	err := s.ideas.Delete(ctx, id, func(idea *model.Idea) error {
		return authorizeAuthorEdit(v, idea)
	})
	if err != nil {
		return err
	}
	s.listing.Purge()
	s.log.InfoContext(ctx, "idea deleted", "idea_id", id, "by", v.UserID)
	return nil
}

// authorizeAuthorEdit 管理员不受限；作者只能在 private 状态下修改或删除
func authorizeAuthorEdit(v Viewer, idea *model.Idea) error {
	if v.IsAdmin() {
		return nil
	}
	if !CanView(v, idea) {
		return pkg.ErrNotFound
	}
	if idea.AuthorID != v.UserID || idea.Status != model.StatusPrivate {
		return pkg.ErrForbidden
	}
	return nil
}

func (s *IdeaService) List(ctx context.Context, v Viewer, p ListParams) (*IdeaPage, error) {
	ctx, span := tracer.Start(ctx, "Idea.Service.List")
	defer span.End()

	if v.Anonymous() {
		return nil, pkg.ErrUnauthorized
	}
	status, err := ParseStatusFilter(p.Status)
	if err != nil {
		return nil, err
	}
	if status == model.StatusWontImplement && !v.IsAdmin() {
		return nil, pkg.ErrForbidden
	}
	sortKey, err := ParseSort(p.Sort)
	if err != nil {
		return nil, err
	}
	limit, offset := NormalizePage(p.Limit, p.Offset)

	q := rdb.IdeaQuery{
		AdminView:  v.IsAdmin(),
		ViewerID:   v.UserID,
		Status:     status,
		PinnedOnly: p.Pinned,
		Search:     p.Query,
	}
	if p.Mine {
		q.AuthorID = v.UserID
	}
	scope := v.UserID
	if v.IsAdmin() {
		scope = "admin"
	}
	key := listingKey(scope, string(status), string(sortKey), strconv.FormatBool(p.Pinned), q.AuthorID, p.Query)

	ideas, ok := s.listing.Get(key)
	if !ok {
		gen := s.listing.Generation()
		rows, err := s.ideas.List(ctx, q)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		ideas = FilterVisible(v, rows)
		SortIdeas(ideas, sortKey)
		s.listing.Put(key, gen, ideas)
	}

	page := &IdeaPage{Items: []model.Idea{}, Total: len(ideas), Limit: limit, Offset: offset}
	if offset < len(ideas) {
		end := offset + limit
		if end > len(ideas) {
			end = len(ideas)
		}
		page.Items = append(page.Items, ideas[offset:end]...)
	}
	return page, nil
}
