package rdb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
)

const decrementCommentCount = "CASE WHEN comment_count > 0 THEN comment_count - 1 ELSE 0 END"

type CommentRepository struct {
	DB *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{DB: db}
}

// Create 插入评论并更新想法评论数；回复只允许挂在同一想法的顶层评论下
func (r *CommentRepository) Create(ctx context.Context, c *model.Comment, check func(*model.Idea) error) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var idea model.Idea
		if err := lockIdea(tx, c.IdeaID, &idea); err != nil {
			return err
		}
		if check != nil {
			if err := check(&idea); err != nil {
				return err
			}
		}
		if c.ParentID != nil {
			var parent model.Comment
			if err := tx.Where("id = ?", *c.ParentID).First(&parent).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkg.Invalid("parentId", "parent comment does not exist")
				}
				return err
			}
			if parent.IdeaID != c.IdeaID {
				return pkg.Invalid("parentId", "parent comment belongs to another idea")
			}
			if parent.ParentID != nil {
				return pkg.Invalid("parentId", "replies can only target top-level comments")
			}
			if parent.IsDeleted {
				return pkg.Invalid("parentId", "parent comment was deleted")
			}
		}
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return tx.Model(&model.Idea{}).
			Where("id = ?", c.IdeaID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1)).Error
	})
	return wrap("comment.create", err)
}

func (r *CommentRepository) FindByID(ctx context.Context, ideaID, id string) (*model.Comment, error) {
	var c model.Comment
	if err := r.DB.WithContext(ctx).Where("id = ? AND idea_id = ?", id, ideaID).First(&c).Error; err != nil {
		return nil, wrap("comment.find", err)
	}
	return &c, nil
}

// ListByIdea 按时间正序返回，包括已删除评论（由上层决定如何展示）
func (r *CommentRepository) ListByIdea(ctx context.Context, ideaID string) ([]model.Comment, error) {
	var list []model.Comment
	if err := r.DB.WithContext(ctx).
		Where("idea_id = ?", ideaID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, wrap("comment.list", err)
	}
	return list, nil
}

// UpdateContent 在事务内读取评论交给 check 判断权限后更新内容
func (r *CommentRepository) UpdateContent(ctx context.Context, ideaID, id, content string, at time.Time, check func(*model.Comment) error) (*model.Comment, error) {
	var c model.Comment
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND idea_id = ?", id, ideaID).First(&c).Error; err != nil {
			return err
		}
		if c.IsDeleted {
			return pkg.ErrNotFound
		}
		if check != nil {
			if err := check(&c); err != nil {
				return err
			}
		}
		if err := tx.Model(&model.Comment{}).Where("id = ?", id).
			Updates(map[string]any{"content": content, "updated_at": at}).Error; err != nil {
			return err
		}
		c.Content = content
		c.UpdatedAt = at
		return nil
	})
	if err != nil {
		return nil, wrap("comment.update", err)
	}
	return &c, nil
}

// SoftDelete 软删除评论并将评论数-1（不低于 0），重复删除为幂等
func (r *CommentRepository) SoftDelete(ctx context.Context, ideaID, id string, at time.Time, check func(*model.Comment) error) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var idea model.Idea
		if err := lockIdea(tx, ideaID, &idea); err != nil {
			return err
		}
		var c model.Comment
		if err := tx.Where("id = ? AND idea_id = ?", id, ideaID).First(&c).Error; err != nil {
			return err
		}
		if check != nil {
			if err := check(&c); err != nil {
				return err
			}
		}
		if c.IsDeleted {
			return nil
		}
		res := tx.Model(&model.Comment{}).
			Where("id = ? AND is_deleted = ?", id, false).
			Updates(map[string]any{"is_deleted": true, "updated_at": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&model.Idea{}).
			Where("id = ?", ideaID).
			UpdateColumn("comment_count", gorm.Expr(decrementCommentCount)).Error
	})
	return wrap("comment.delete", err)
}
