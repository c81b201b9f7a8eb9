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

const MaxBulkSize = 100

type ModerationService struct {
	ideas   *rdb.IdeaRepository
	users   *rdb.UserRepository
	listing *ListingCache
	log     *slog.Logger
	now     func() time.Time
}

func NewModerationService(ideas *rdb.IdeaRepository, users *rdb.UserRepository, listing *ListingCache, log *slog.Logger) *ModerationService {
	if log == nil {
		log = slog.Default()
	}
	return &ModerationService{
		ideas:   ideas,
		users:   users,
		listing: listing,
		log:     log,
		now:     time.Now,
	}
}

type BulkFailure struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

type Stats struct {
	TotalIdeas     int64                      `json:"totalIdeas"`
	PendingReviews int64                      `json:"pendingReviews"`
	TotalUsers     int64                      `json:"totalUsers"`
	IdeasByStatus  map[model.IdeaStatus]int64 `json:"ideasByStatus"`
}

// approve private -> needs_review，同时公开
func approve(now time.Time) rdb.ModifyFunc {
	return func(idea *model.Idea) (map[string]any, string, error) {
		if idea.Status != model.StatusPrivate {
			return nil, "", pkg.ErrInvalidTransition
		}
		return map[string]any{
			"status":             model.StatusNeedsReview,
			"is_public":          true,
			"last_status_update": now,
			"updated_at":         now,
		}, model.EventIdeaApproved, nil
	}
}

// reject 非终态 -> wont_implement，不改变公开状态
func reject(now time.Time) rdb.ModifyFunc {
	return func(idea *model.Idea) (map[string]any, string, error) {
		if idea.Status.Terminal() {
			return nil, "", pkg.ErrInvalidTransition
		}
		return map[string]any{
			"status":             model.StatusWontImplement,
			"last_status_update": now,
			"updated_at":         now,
		}, model.EventIdeaRejected, nil
	}
}

func setStatus(target model.IdeaStatus, now time.Time) rdb.ModifyFunc {
	return func(idea *model.Idea) (map[string]any, string, error) {
		return map[string]any{
			"status":             target,
			"last_status_update": now,
			"updated_at":         now,
		}, model.EventIdeaStatusChanged, nil
	}
}

func setPinned(pinned bool, now time.Time) rdb.ModifyFunc {
	return func(idea *model.Idea) (map[string]any, string, error) {
		return map[string]any{"is_pinned": pinned, "updated_at": now}, "", nil
	}
}

func (s *ModerationService) Approve(ctx context.Context, v Viewer, id string) (*model.Idea, error) {
	ctx, span := tracer.Start(ctx, "Moderation.Service.Approve")
	defer span.End()
	return s.apply(ctx, v, "approve", id, approve)
}

func (s *ModerationService) Reject(ctx context.Context, v Viewer, id string) (*model.Idea, error) {
	ctx, span := tracer.Start(ctx, "Moderation.Service.Reject")
	defer span.End()
	return s.apply(ctx, v, "reject", id, reject)
}

// SetStatus 管理员直接推进到 under_consideration/planned/in_development/completed
func (s *ModerationService) SetStatus(ctx context.Context, v Viewer, id, status string) (*model.Idea, error) {
	ctx, span := tracer.Start(ctx, "Moderation.Service.SetStatus")
	defer span.End()

	if err := requireAdmin(v); err != nil {
		return nil, err
	}
	target := model.IdeaStatus(strings.TrimSpace(status))
	if !target.Advanceable() {
		return nil, pkg.Invalid("status", "status must be one of under_consideration, planned, in_development, completed")
	}
	return s.apply(ctx, v, "set_status", id, func(now time.Time) rdb.ModifyFunc {
		return setStatus(target, now)
	})
}

func (s *ModerationService) Pin(ctx context.Context, v Viewer, id string) (*model.Idea, error) {
	ctx, span := tracer.Start(ctx, "Moderation.Service.Pin")
	defer span.End()
	return s.apply(ctx, v, "pin", id, func(now time.Time) rdb.ModifyFunc { return setPinned(true, now) })
}

func (s *ModerationService) Unpin(ctx context.Context, v Viewer, id string) (*model.Idea, error) {
	ctx, span := tracer.Start(ctx, "Moderation.Service.Unpin")
	defer span.End()
	return s.apply(ctx, v, "unpin", id, func(now time.Time) rdb.ModifyFunc { return setPinned(false, now) })
}

func (s *ModerationService) BulkApprove(ctx context.Context, v Viewer, ids []string) (*BulkResult, error) {
	ctx, span := tracer.Start(ctx, "Moderation.Service.BulkApprove")
	defer span.End()
	return s.bulk(ctx, v, "bulk_approve", ids, approve)
}

func (s *ModerationService) BulkReject(ctx context.Context, v Viewer, ids []string) (*BulkResult, error) {
	ctx, span := tracer.Start(ctx, "Moderation.Service.BulkReject")
	defer span.End()
	return s.bulk(ctx, v, "bulk_reject", ids, reject)
}

// 权限检查在任何读取之前
func (s *ModerationService) apply(ctx context.Context, v Viewer, action, id string, build func(time.Time) rdb.ModifyFunc) (*model.Idea, error) {
	if err := requireAdmin(v); err != nil {
		return nil, err
	}
	idea, err := s.ideas.Modify(ctx, id, build(s.now()))
	pkg.ModerationTotal.WithLabelValues(action, pkg.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.listing.Purge()
	s.log.InfoContext(ctx, "idea moderated", "action", action, "idea_id", id, "status", idea.Status, "by", v.UserID)
	return idea, nil
}

func (s *ModerationService) bulk(ctx context.Context, v Viewer, action string, ids []string, build func(time.Time) rdb.ModifyFunc) (*BulkResult, error) {
	if err := requireAdmin(v); err != nil {
		return nil, err
	}
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, pkg.Invalid("ids", "at least one id is required")
	}
	if len(ids) > MaxBulkSize {
		return nil, pkg.Invalid("ids", "at most 100 ids per request")
	}

	succeeded, failed, err := s.ideas.ModifyMany(ctx, ids, build(s.now()))
	if err != nil {
		pkg.ModerationTotal.WithLabelValues(action, pkg.Result(err)).Inc()
		return nil, err
	}
	res := &BulkResult{Succeeded: succeeded, Failed: make([]BulkFailure, 0, len(failed))}
	if res.Succeeded == nil {
		res.Succeeded = []string{}
	}
	for _, f := range failed {
		res.Failed = append(res.Failed, BulkFailure{ID: f.ID, Code: pkg.ErrorCode(f.Err), Reason: f.Err.Error()})
	}
	pkg.ModerationTotal.WithLabelValues(action, "ok").Add(float64(len(res.Succeeded)))
	pkg.ModerationTotal.WithLabelValues(action, "failed").Add(float64(len(res.Failed)))
	if len(res.Succeeded) > 0 {
		s.listing.Purge()
	}
	s.log.InfoContext(ctx, "bulk moderation", "action", action, "succeeded", len(res.Succeeded), "failed", len(res.Failed), "by", v.UserID)
	return res, nil
}

// PendingReviews 待审核队列（status=private），最新在前
func (s *ModerationService) PendingReviews(ctx context.Context, v Viewer, limit int) ([]model.Idea, error) {
	if err := requireAdmin(v); err != nil {
		return nil, err
	}
	limit, _ = NormalizePage(limit, 0)
	return s.ideas.PendingReviews(ctx, limit)
}

func (s *ModerationService) Stats(ctx context.Context, v Viewer) (*Stats, error) {
	ctx, span := tracer.Start(ctx, "Moderation.Service.Stats")
	defer span.End()

	if err := requireAdmin(v); err != nil {
		return nil, err
	}
	byStatus, err := s.ideas.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{IdeasByStatus: byStatus, TotalUsers: users, PendingReviews: byStatus[model.StatusPrivate]}
	for _, n := range byStatus {
		st.TotalIdeas += n
	}
	return st, nil
}

func requireAdmin(v Viewer) error {
	if v.Anonymous() {
		return pkg.ErrUnauthorized
	}
	if !v.IsAdmin() {
		return pkg.ErrForbidden
	}
	return nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
