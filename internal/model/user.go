package model

import "time"

type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAdmin
}

// User 应用侧的用户档案，ID 与身份服务返回的账号ID一致
type User struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Email       string    `gorm:"uniqueIndex;size:254;not null" json:"email"`
	DisplayName string    `gorm:"size:128;not null" json:"displayName"`
	FirstName   string    `gorm:"size:64" json:"firstName"`
	LastName    string    `gorm:"size:64" json:"lastName"`
	Role        Role      `gorm:"size:16;not null;default:client" json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// Credential 本地身份服务的账号表，只存 bcrypt 哈希
type Credential struct {
	UserID       string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:254;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Credential) TableName() string { return "credentials" }
