package rdb

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"Idea_Portal/internal/model"
)

type OutboxRepository struct {
	DB *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{DB: db}
}

type ideaEvent struct {
	EventTime string           `json:"event_time"`
	IdeaID    string           `json:"idea_id"`
	Title     string           `json:"title"`
	AuthorID  string           `json:"author_id"`
	Status    model.IdeaStatus `json:"status"`
	IsPublic  bool             `json:"is_public"`
	VoteCount int64            `json:"vote_count"`
}

func insertOutbox(tx *gorm.DB, event string, idea *model.Idea) error {
	payload, err := json.Marshal(ideaEvent{
		EventTime: time.Now().UTC().Format(time.RFC3339Nano),
		IdeaID:    idea.ID,
		Title:     idea.Title,
		AuthorID:  idea.AuthorID,
		Status:    idea.Status,
		IsPublic:  idea.IsPublic,
		VoteCount: idea.VoteCount,
	})
	if err != nil {
		return err
	}
	return tx.Create(&model.IdeaOutbox{
		EventType: event,
		IdeaID:    idea.ID,
		Payload:   string(payload),
		Status:    model.OutboxPending,
	}).Error
}

// List 待投递事件：新事件以及重试次数未超限的失败事件
func (r *OutboxRepository) List(ctx context.Context, batchSize, maxRetry int) ([]model.IdeaOutbox, error) {
	var list []model.IdeaOutbox
	if err := r.DB.WithContext(ctx).
		Where("status = ? OR (status = ? AND retry < ?)", model.OutboxPending, model.OutboxFailed, maxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, wrap("outbox.list", err)
	}
	return list, nil
}

// RetryUpdate 投递失败，记录失败并累加重试次数
func (r *OutboxRepository) RetryUpdate(ctx context.Context, id uint64) error {
	return wrap("outbox.retry", r.DB.WithContext(ctx).Model(&model.IdeaOutbox{}).Where("id = ?", id).
		Updates(map[string]any{"status": model.OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error)
}

func (r *OutboxRepository) SuccessUpdate(ctx context.Context, id uint64) error {
	return wrap("outbox.success", r.DB.WithContext(ctx).Model(&model.IdeaOutbox{}).Where("id = ?", id).
		Update("status", model.OutboxSent).Error)
}
