package rdb

import (
	"context"

	"gorm.io/gorm"

	"Idea_Portal/internal/model"
)

type VerificationRepository struct {
	DB *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) *VerificationRepository {
	return &VerificationRepository{DB: db}
}

func (r *VerificationRepository) Create(ctx context.Context, v *model.EmailVerification) error {
	return wrap("verification.create", r.DB.WithContext(ctx).Create(v).Error)
}

func (r *VerificationRepository) Find(ctx context.Context, token string) (*model.EmailVerification, error) {
	var v model.EmailVerification
	if err := r.DB.WithContext(ctx).Where("token = ?", token).First(&v).Error; err != nil {
		return nil, wrap("verification.find", err)
	}
	return &v, nil
}

// MarkUsed 条件更新 used=false -> true，返回是否由本次调用完成消费
func (r *VerificationRepository) MarkUsed(ctx context.Context, token string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.EmailVerification{}).
		Where("token = ? AND used = ?", token, false).
		Update("used", true)
	if res.Error != nil {
		return false, wrap("verification.mark_used", res.Error)
	}
	return res.RowsAffected == 1, nil
}
