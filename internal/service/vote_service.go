package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
	"Idea_Portal/internal/repository/rdb"
)

type VoteService struct {
	ideas   *rdb.IdeaRepository
	votes   *rdb.VoteRepository
	cache   VoteStateCache
	listing *ListingCache
	log     *slog.Logger
	now     func() time.Time
}

func NewVoteService(ideas *rdb.IdeaRepository, votes *rdb.VoteRepository, cache VoteStateCache, listing *ListingCache, log *slog.Logger) *VoteService {
	if log == nil {
		log = slog.Default()
	}
	return &VoteService{
		ideas:   ideas,
		votes:   votes,
		cache:   cache,
		listing: listing,
		log:     log,
		now:     time.Now,
	}
}

func visibleTo(v Viewer) func(*model.Idea) error {
	return func(idea *model.Idea) error {
		if !CanView(v, idea) {
			return pkg.ErrNotFound
		}
		return nil
	}
}

// Vote 投票状态缓存在事务持锁期间写入，与提交顺序一致；失败时删除交给读侧回源
func (s *VoteService) Vote(ctx context.Context, v Viewer, ideaID string) (*model.Idea, error) {
	ctx, span := tracer.Start(ctx, "Vote.Service.Vote")
	defer span.End()

	if v.Anonymous() {
		return nil, pkg.ErrUnauthorized
	}
	idea, err := s.votes.Vote(ctx, ideaID, v.UserID, s.now(), visibleTo(v), s.record(ctx, ideaID, v.UserID))
	pkg.VotesTotal.WithLabelValues("vote", pkg.Result(err)).Inc()
	if err != nil {
		s.dropOnFailure(ctx, ideaID, v.UserID, err)
		return nil, err
	}
	s.listing.Purge()
	return idea, nil
}

func (s *VoteService) Unvote(ctx context.Context, v Viewer, ideaID string) (*model.Idea, error) {
	ctx, span := tracer.Start(ctx, "Vote.Service.Unvote")
	defer span.End()

	if v.Anonymous() {
		return nil, pkg.ErrUnauthorized
	}
	idea, err := s.votes.Unvote(ctx, ideaID, v.UserID, s.now(), visibleTo(v), s.record(ctx, ideaID, v.UserID))
	pkg.VotesTotal.WithLabelValues("unvote", pkg.Result(err)).Inc()
	if err != nil {
		s.dropOnFailure(ctx, ideaID, v.UserID, err)
		return nil, err
	}
	s.listing.Purge()
	return idea, nil
}

func (s *VoteService) HasVoted(ctx context.Context, v Viewer, ideaID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Vote.Service.HasVoted")
	defer span.End()

	if v.Anonymous() {
		return false, pkg.ErrUnauthorized
	}
	idea, err := s.ideas.FindByID(ctx, ideaID)
	if err != nil {
		return false, err
	}
	if !CanView(v, idea) {
		return false, pkg.ErrNotFound
	}
	// 先查缓存（命中才用）
	if s.cache != nil {
		if voted, hit, err := s.cache.Get(ctx, ideaID, v.UserID); err == nil && hit {
			return voted, nil
		}
	}
	voted, err := s.votes.HasVoted(ctx, ideaID, v.UserID)
	if err != nil {
		return false, err
	}
	s.fill(ctx, ideaID, v.UserID, voted)
	return voted, nil
}

// VotedIdeas 当前用户投过票且仍可见的想法，最近投票在前
func (s *VoteService) VotedIdeas(ctx context.Context, v Viewer) ([]model.Idea, error) {
	ctx, span := tracer.Start(ctx, "Vote.Service.VotedIdeas")
	defer span.End()

	if v.Anonymous() {
		return nil, pkg.ErrUnauthorized
	}
	ids, err := s.votes.VotedIdeaIDs(ctx, v.UserID)
	if err != nil {
		return nil, err
	}
	rows, err := s.ideas.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Idea, len(rows))
	for _, idea := range rows {
		byID[idea.ID] = idea
	}
	out := make([]model.Idea, 0, len(ids))
	for _, id := range ids {
		if idea, ok := byID[id]; ok && CanView(v, &idea) {
			out = append(out, idea)
		}
	}
	return out, nil
}

// record 返回给投票事务的写缓存回调
func (s *VoteService) record(ctx context.Context, ideaID, userID string) func(bool) {
	if s.cache == nil {
		return nil
	}
	return func(voted bool) {
		if err := s.cache.Set(ctx, ideaID, userID, voted); err != nil {
			s.log.WarnContext(ctx, "vote cache write failed", "idea_id", ideaID, "err", err)
			s.invalidate(ctx, ideaID, userID)
		}
	}
}

// dropOnFailure 已重复/未投票说明缓存可能过期；其他失败可能发生在写缓存之后的回滚
func (s *VoteService) dropOnFailure(ctx context.Context, ideaID, userID string, err error) {
	if errors.Is(err, pkg.ErrNotFound) {
		return
	}
	s.invalidate(ctx, ideaID, userID)
}

func (s *VoteService) invalidate(ctx context.Context, ideaID, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ideaID, userID); err != nil {
		s.log.WarnContext(ctx, "vote cache invalidate failed", "idea_id", ideaID, "err", err)
	}
}

// fill 读侧回源后回填，不覆盖写路径写入的状态
func (s *VoteService) fill(ctx context.Context, ideaID, userID string, voted bool) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Fill(ctx, ideaID, userID, voted); err != nil {
		s.log.WarnContext(ctx, "vote cache fill failed", "idea_id", ideaID, "err", err)
	}
}
