package service

import "Idea_Portal/internal/model"

// Viewer 当前请求者；UserID 为空表示匿名
type Viewer struct {
	UserID string
	Name   string
	Role   model.Role
}

func (v Viewer) Anonymous() bool { return v.UserID == "" }

func (v Viewer) IsAdmin() bool { return !v.Anonymous() && v.Role == model.RoleAdmin }
