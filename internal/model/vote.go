package model

import "time"

// Vote 联合主键 (idea_id, user_id) 保证一人一票
type Vote struct {
	IdeaID    string    `gorm:"primaryKey;size:36" json:"ideaId"`
	UserID    string    `gorm:"primaryKey;size:36;index:idx_votes_user" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Vote) TableName() string {
	return "idea_votes"
}
