package rdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = normalizeEmail(user.Email)
	err := r.DB.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkg.ErrEmailTaken
	}
	return wrap("user.create", err)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, wrap("user.find", err)
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, wrap("user.find_by_email", err)
	}
	return &user, nil
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, wrap("user.count", err)
	}
	var users []model.User
	if err := r.DB.WithContext(ctx).
		Order("created_at DESC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, 0, wrap("user.list", err)
	}
	return users, total, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&model.User{}).Count(&n).Error; err != nil {
		return 0, wrap("user.count", err)
	}
	return n, nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role model.Role) error {
	res := r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return wrap("user.update_role", res.Error)
	}
	if res.RowsAffected == 0 {
		// 角色未变化时部分驱动也返回 0，再确认一次是否存在
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *UserRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	err := r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
	return wrap("user.touch_login", err)
}

// Delete 删除用户档案、账号以及其投票，并修正相关想法的票数
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			return err
		}
		var ideaIDs []string
		if err := tx.Model(&model.Vote{}).Where("user_id = ?", id).Pluck("idea_id", &ideaIDs).Error; err != nil {
			return err
		}
		// 与批量审核一致按 id 升序加锁
		sort.Strings(ideaIDs)
		for _, ideaID := range ideaIDs {
			var idea model.Idea
			if err := lockIdea(tx, ideaID, &idea); err != nil {
				if errors.Is(err, pkg.ErrNotFound) {
					continue
				}
				return err
			}
			if err := tx.Model(&model.Idea{}).Where("id = ?", ideaID).
				UpdateColumn("vote_count", gorm.Expr(decrementVoteCount)).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.Credential{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.User{}).Error
	})
	return wrap("user.delete", err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
