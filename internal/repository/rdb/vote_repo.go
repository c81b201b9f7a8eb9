package rdb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
)

const decrementVoteCount = "CASE WHEN vote_count > 0 THEN vote_count - 1 ELSE 0 END"

type VoteRepository struct {
	DB *gorm.DB
}

func NewVoteRepository(db *gorm.DB) *VoteRepository {
	return &VoteRepository{DB: db}
}

// Vote 锁住想法行后插入投票并计数+1；(idea_id, user_id) 主键兜底防重复。
// written 在提交前、仍持有行锁时调用，同一想法上的状态通知与提交顺序一致
func (r *VoteRepository) Vote(ctx context.Context, ideaID, userID string, at time.Time, check func(*model.Idea) error, written func(voted bool)) (*model.Idea, error) {
	var out model.Idea
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockIdea(tx, ideaID, &out); err != nil {
			return err
		}
		if check != nil {
			if err := check(&out); err != nil {
				return err
			}
		}
		var n int64
		if err := tx.Model(&model.Vote{}).
			Where("idea_id = ? AND user_id = ?", ideaID, userID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return pkg.ErrAlreadyVoted
		}
		if err := tx.Create(&model.Vote{IdeaID: ideaID, UserID: userID, CreatedAt: at}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return pkg.ErrAlreadyVoted
			}
			return err
		}
		if err := tx.Model(&model.Idea{}).
			Where("id = ?", ideaID).
			UpdateColumns(map[string]any{
				"vote_count": gorm.Expr("vote_count + ?", 1),
				"updated_at": at,
			}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", ideaID).First(&out).Error; err != nil {
			return err
		}
		if written != nil {
			written(true)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("vote.create", err)
	}
	return &out, nil
}

// Unvote 删除投票，计数-1 且不低于 0
func (r *VoteRepository) Unvote(ctx context.Context, ideaID, userID string, at time.Time, check func(*model.Idea) error, written func(voted bool)) (*model.Idea, error) {
	var out model.Idea
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockIdea(tx, ideaID, &out); err != nil {
			return err
		}
		if check != nil {
			if err := check(&out); err != nil {
				return err
			}
		}
		res := tx.Where("idea_id = ? AND user_id = ?", ideaID, userID).Delete(&model.Vote{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkg.ErrNotVoted
		}
		if err := tx.Model(&model.Idea{}).
			Where("id = ?", ideaID).
			UpdateColumns(map[string]any{
				"vote_count": gorm.Expr(decrementVoteCount),
				"updated_at": at,
			}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", ideaID).First(&out).Error; err != nil {
			return err
		}
		if written != nil {
			written(false)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("vote.delete", err)
	}
	return &out, nil
}

func (r *VoteRepository) HasVoted(ctx context.Context, ideaID, userID string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&model.Vote{}).
		Where("idea_id = ? AND user_id = ?", ideaID, userID).
		Count(&n).Error
	if err != nil {
		return false, wrap("vote.has_voted", err)
	}
	return n > 0, nil
}

// VotedIdeaIDs 用户投过票的想法，最近投票在前
func (r *VoteRepository) VotedIdeaIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).
		Model(&model.Vote{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Pluck("idea_id", &ids).Error
	if err != nil {
		return nil, wrap("vote.voted_ideas", err)
	}
	return ids, nil
}

func (r *VoteRepository) CountForIdea(ctx context.Context, ideaID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Vote{}).Where("idea_id = ?", ideaID).Count(&n).Error
	if err != nil {
		return 0, wrap("vote.count", err)
	}
	return n, nil
}
