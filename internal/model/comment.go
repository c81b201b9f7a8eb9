package model

import "time"

type Comment struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	IdeaID     string    `gorm:"size:36;not null;index:idx_comments_idea" json:"ideaId"`
	ParentID   *string   `gorm:"size:36" json:"parentId"`
	AuthorID   string    `gorm:"size:36;not null" json:"authorId"`
	AuthorName string    `gorm:"size:128" json:"authorName"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsDeleted  bool      `gorm:"not null;default:false" json:"isDeleted"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
