package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"Idea_Portal/internal/pkg"
	"Idea_Portal/internal/repository/rdb"
)

const reconcileLockName = "reconcile:vote-count"

// VoteCountReconciler 定期用投票表校准想法票数，多实例通过分布式锁只跑一份
type VoteCountReconciler struct {
	repo      *rdb.VoteCountReconcilerRepo
	lock      Locker
	listing   *ListingCache
	batchSize int
	interval  time.Duration
	log       *slog.Logger
}

func NewVoteCountReconciler(repo *rdb.VoteCountReconcilerRepo, lock Locker, listing *ListingCache, interval time.Duration, batchSize int, log *slog.Logger) *VoteCountReconciler {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &VoteCountReconciler{
		repo:      repo,
		lock:      lock,
		listing:   listing,
		batchSize: batchSize,
		interval:  interval,
		log:       log,
	}
}

// Run 对账定时任务启动器
func (r *VoteCountReconciler) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.ReconcileOnce(ctx); err != nil {
				r.log.ErrorContext(ctx, "vote reconcile failed", "err", err)
			}
		}
	}
}

// ReconcileOnce 返回本轮修正的想法数量
func (r *VoteCountReconciler) ReconcileOnce(ctx context.Context) (int, error) {
	if r.lock != nil {
		token := uuid.NewString()
		got, err := r.lock.Acquire(ctx, reconcileLockName, token, r.interval)
		if err != nil {
			return 0, err
		}
		if !got {
			return 0, nil
		}
		defer func() {
			if err := r.lock.Release(context.WithoutCancel(ctx), reconcileLockName, token); err != nil {
				r.log.WarnContext(ctx, "reconcile lock release failed", "err", err)
			}
		}()
	}

	fixed := 0
	defer func() {
		if fixed > 0 {
			r.listing.Purge()
		}
	}()
	lastID := ""
	for {
		list, next, err := r.repo.ReconcileList(ctx, r.batchSize, lastID)
		if err != nil {
			return fixed, err
		}
		for _, p := range list {
			// 无锁预检，只有疑似漂移才进入加锁修正
			actual, err := r.repo.RealVotes(ctx, p.ID)
			if err != nil {
				return fixed, err
			}
			if actual == p.VoteCount {
				continue
			}
			stored, actual, changed, err := r.repo.FixVoteCount(ctx, p.ID)
			if err != nil {
				if errors.Is(err, pkg.ErrNotFound) {
					continue
				}
				return fixed, err
			}
			if changed {
				fixed++
				pkg.VoteDriftCorrected.Inc()
				r.log.InfoContext(ctx, "vote count corrected", "idea_id", p.ID, "stored", stored, "actual", actual)
			}
		}
		if len(list) < r.batchSize {
			return fixed, nil
		}
		lastID = next
	}
}
