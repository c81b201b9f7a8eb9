package model

import "time"

// EmailVerification 注册前的邮箱验证令牌，只能被消费一次
type EmailVerification struct {
	Token     string    `gorm:"primaryKey;size:36"`
	Email     string    `gorm:"size:254;not null;index"`
	FirstName string    `gorm:"size:64"`
	LastName  string    `gorm:"size:64"`
	ExpiresAt time.Time `gorm:"not null"`
	Used      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (EmailVerification) TableName() string { return "email_verifications" }
