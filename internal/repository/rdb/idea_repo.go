package rdb

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
)

type IdeaRepository struct {
	DB *gorm.DB
}

func NewIdeaRepository(db *gorm.DB) *IdeaRepository {
	return &IdeaRepository{DB: db}
}

// IdeaQuery 列表查询条件，ViewerID 为空且非管理员时看不到任何想法
type IdeaQuery struct {
	AdminView  bool
	ViewerID   string
	Status     model.IdeaStatus // 空表示不过滤
	AuthorID   string
	PinnedOnly bool
	Search     string
}

// ModifyFunc 在行锁内检查想法并返回要更新的列和需要写入 outbox 的事件类型
type ModifyFunc func(idea *model.Idea) (updates map[string]any, event string, err error)

type BulkFailure struct {
	ID  string
	Err error
}

// Create 想法和 idea.created 事件同事务写入
func (r *IdeaRepository) Create(ctx context.Context, idea *model.Idea) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(idea).Error; err != nil {
			return err
		}
		return insertOutbox(tx, model.EventIdeaCreated, idea)
	})
	return wrap("idea.create", err)
}

func (r *IdeaRepository) FindByID(ctx context.Context, id string) (*model.Idea, error) {
	var idea model.Idea
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&idea).Error; err != nil {
		return nil, wrap("idea.find", err)
	}
	return &idea, nil
}

func (r *IdeaRepository) List(ctx context.Context, q IdeaQuery) ([]model.Idea, error) {
	db := r.DB.WithContext(ctx).Model(&model.Idea{})
	if !q.AdminView {
		if q.ViewerID == "" {
			return []model.Idea{}, nil
		}
		db = db.Where("((is_public = ? AND status <> ?) OR author_id = ?)", true, model.StatusWontImplement, q.ViewerID)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.AuthorID != "" {
		db = db.Where("author_id = ?", q.AuthorID)
	}
	if q.PinnedOnly {
		db = db.Where("is_pinned = ?", true)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		db = db.Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", like, like)
	}
	var ideas []model.Idea
	if err := db.Order("created_at DESC").Order("id ASC").Find(&ideas).Error; err != nil {
		return nil, wrap("idea.list", err)
	}
	return ideas, nil
}

func (r *IdeaRepository) ListByIDs(ctx context.Context, ids []string) ([]model.Idea, error) {
	if len(ids) == 0 {
		return []model.Idea{}, nil
	}
	var ideas []model.Idea
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&ideas).Error; err != nil {
		return nil, wrap("idea.list_by_ids", err)
	}
	return ideas, nil
}

// Modify 锁定单个想法，在事务内检查并更新
func (r *IdeaRepository) Modify(ctx context.Context, id string, fn ModifyFunc) (*model.Idea, error) {
	var out *model.Idea
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		idea, err := modifyOne(tx, id, fn)
		if err != nil {
			return err
		}
		out = idea
		return nil
	})
	if err != nil {
		return nil, wrap("idea.modify", err)
	}
	return out, nil
}

// ModifyMany 批量操作在同一事务内逐个加锁检查；业务失败记入 failed，基础设施错误整体回滚
func (r *IdeaRepository) ModifyMany(ctx context.Context, ids []string, fn ModifyFunc) ([]string, []BulkFailure, error) {
	var succeeded []string
	var failed []BulkFailure
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		succeeded, failed = nil, nil
		if err := lockIdeas(tx, ids); err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := modifyOne(tx, id, fn); err != nil {
				if pkg.IsDomain(err) {
					failed = append(failed, BulkFailure{ID: id, Err: err})
					continue
				}
				return err
			}
			succeeded = append(succeeded, id)
		}
		return nil
	})
	if err != nil {
		return nil, nil, wrap("idea.modify_many", err)
	}
	return succeeded, failed, nil
}

func modifyOne(tx *gorm.DB, id string, fn ModifyFunc) (*model.Idea, error) {
	var idea model.Idea
	if err := lockIdea(tx, id, &idea); err != nil {
		return nil, err
	}
	updates, event, err := fn(&idea)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := tx.Model(&model.Idea{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
		// 重新读取，返回数据库中的最终值
		if err := tx.Where("id = ?", id).First(&idea).Error; err != nil {
			return nil, err
		}
	}
	if event != "" {
		if err := insertOutbox(tx, event, &idea); err != nil {
			return nil, err
		}
	}
	return &idea, nil
}

// Delete 级联删除投票和评论，check 在行锁内做权限判断
func (r *IdeaRepository) Delete(ctx context.Context, id string, check func(*model.Idea) error) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var idea model.Idea
		if err := lockIdea(tx, id, &idea); err != nil {
			return err
		}
		if check != nil {
			if err := check(&idea); err != nil {
				return err
			}
		}
		if err := tx.Where("idea_id = ?", id).Delete(&model.Vote{}).Error; err != nil {
			return errors.Wrap(err, "delete votes")
		}
		if err := tx.Where("idea_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
			return errors.Wrap(err, "delete comments")
		}
		if err := tx.Where("id = ?", id).Delete(&model.Idea{}).Error; err != nil {
			return errors.Wrap(err, "delete idea")
		}
		return insertOutbox(tx, model.EventIdeaDeleted, &idea)
	})
	return wrap("idea.delete", err)
}

// PendingReviews 待审核队列，最新提交在前
func (r *IdeaRepository) PendingReviews(ctx context.Context, limit int) ([]model.Idea, error) {
	var ideas []model.Idea
	db := r.DB.WithContext(ctx).Where("status = ?", model.StatusPrivate).Order("created_at DESC").Order("id ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&ideas).Error; err != nil {
		return nil, wrap("idea.pending", err)
	}
	return ideas, nil
}

type statusCount struct {
	Status model.IdeaStatus
	N      int64
}

func (r *IdeaRepository) CountByStatus(ctx context.Context) (map[model.IdeaStatus]int64, error) {
	var rows []statusCount
	if err := r.DB.WithContext(ctx).Model(&model.Idea{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, wrap("idea.count_by_status", err)
	}
	out := make(map[model.IdeaStatus]int64, len(model.AllStatuses))
	for _, s := range model.AllStatuses {
		out[s] = 0
	}
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
