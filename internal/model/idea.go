package model

import "time"

type IdeaStatus string

const (
	StatusPrivate            IdeaStatus = "private"
	StatusNeedsReview        IdeaStatus = "needs_review"
	StatusUnderConsideration IdeaStatus = "under_consideration"
	StatusPlanned            IdeaStatus = "planned"
	StatusInDevelopment      IdeaStatus = "in_development"
	StatusCompleted          IdeaStatus = "completed"
	StatusWontImplement      IdeaStatus = "wont_implement"
)

// AllStatuses 按工作流顺序排列
var AllStatuses = []IdeaStatus{
	StatusPrivate,
	StatusNeedsReview,
	StatusUnderConsideration,
	StatusPlanned,
	StatusInDevelopment,
	StatusCompleted,
	StatusWontImplement,
}

func (s IdeaStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal 已完成或不实现的想法不能再被拒绝
func (s IdeaStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusWontImplement
}

// Advanceable 管理员可直接设置的目标状态
func (s IdeaStatus) Advanceable() bool {
	switch s {
	case StatusUnderConsideration, StatusPlanned, StatusInDevelopment, StatusCompleted:
		return true
	}
	return false
}

type Idea struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	Title            string     `gorm:"size:400;not null" json:"title"`
	Description      string     `gorm:"type:text;not null" json:"description"`
	AuthorID         string     `gorm:"size:36;not null;index:idx_ideas_author" json:"authorId"`
	AuthorName       string     `gorm:"size:128" json:"authorName"`
	Status           IdeaStatus `gorm:"size:32;not null;default:private;index:idx_ideas_status" json:"status"`
	IsPublic         bool       `gorm:"not null;default:false" json:"isPublic"`
	IsPinned         bool       `gorm:"not null;default:false" json:"isPinned"`
	VoteCount        int64      `gorm:"not null;default:0" json:"voteCount"`
	CommentCount     int64      `gorm:"not null;default:0" json:"commentCount"`
	CreatedAt        time.Time  `gorm:"index:idx_ideas_created" json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	LastStatusUpdate time.Time  `json:"lastStatusUpdate"`
}
