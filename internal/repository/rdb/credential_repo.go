package rdb

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
)

type CredentialRepository struct {
	DB *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{DB: db}
}

// CreateWithProfile 账号和档案同一事务写入，任一失败都不留残留
func (r *CredentialRepository) CreateWithProfile(ctx context.Context, c *model.Credential, user *model.User) error {
	c.Email = normalizeEmail(c.Email)
	user.Email = normalizeEmail(user.Email)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return tx.Create(user).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkg.ErrEmailTaken
	}
	return wrap("credential.create_with_profile", err)
}

func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*model.Credential, error) {
	var c model.Credential
	if err := r.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&c).Error; err != nil {
		return nil, wrap("credential.find", err)
	}
	return &c, nil
}

func (r *CredentialRepository) FindByUserID(ctx context.Context, userID string) (*model.Credential, error) {
	var c model.Credential
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, wrap("credential.find", err)
	}
	return &c, nil
}

func (r *CredentialRepository) UpdatePassword(ctx context.Context, userID, hash string) error {
	res := r.DB.WithContext(ctx).Model(&model.Credential{}).Where("user_id = ?", userID).Update("password_hash", hash)
	if res.Error != nil {
		return wrap("credential.update_password", res.Error)
	}
	if res.RowsAffected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}
