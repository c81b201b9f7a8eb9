package pkg

import "github.com/google/uuid"

// NewID 想法、评论、用户使用的字符串主键
func NewID() string {
	return uuid.NewString()
}

// NewToken 邮箱验证令牌，随机 UUIDv4
func NewToken() string {
	return uuid.NewString()
}
