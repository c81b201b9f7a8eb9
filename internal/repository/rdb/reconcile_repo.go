package rdb

import (
	"context"

	"gorm.io/gorm"

	"Idea_Portal/internal/model"
)

// VoteCountReconcilerRepo 对账：比对想法表计数与投票表真实值
type VoteCountReconcilerRepo struct {
	DB *gorm.DB
}

func NewVoteCountReconcilerRepo(db *gorm.DB) *VoteCountReconcilerRepo {
	return &VoteCountReconcilerRepo{DB: db}
}

// CountPair 对账消息结构体
type CountPair struct {
	ID        string
	VoteCount int64
}

// ReconcileList 按主键游标分批读取
func (r *VoteCountReconcilerRepo) ReconcileList(ctx context.Context, batchSize int, lastID string) ([]CountPair, string, error) {
	var list []CountPair
	if err := r.DB.WithContext(ctx).Model(&model.Idea{}).
		Select("id", "vote_count").
		Where("id > ?", lastID).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, lastID, wrap("reconcile.list", err)
	}
	if len(list) > 0 {
		lastID = list[len(list)-1].ID
	}
	return list, lastID, nil
}

func (r *VoteCountReconcilerRepo) RealVotes(ctx context.Context, ideaID string) (int64, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&model.Vote{}).Where("idea_id = ?", ideaID).Count(&n).Error; err != nil {
		return 0, wrap("reconcile.real_votes", err)
	}
	return n, nil
}

// FixVoteCount 持有想法行锁重新计数并覆盖，与投票事务串行
func (r *VoteCountReconcilerRepo) FixVoteCount(ctx context.Context, ideaID string) (stored, actual int64, changed bool, err error) {
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var idea model.Idea
		if err := lockIdea(tx, ideaID, &idea); err != nil {
			return err
		}
		stored = idea.VoteCount
		if err := tx.Model(&model.Vote{}).Where("idea_id = ?", ideaID).Count(&actual).Error; err != nil {
			return err
		}
		if actual == stored {
			return nil
		}
		if err := tx.Model(&model.Idea{}).Where("id = ?", ideaID).UpdateColumn("vote_count", actual).Error; err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return 0, 0, false, wrap("reconcile.fix", err)
	}
	return stored, actual, changed, nil
}
