package model

import "time"

const (
	EventIdeaCreated       = "idea.created"
	EventIdeaApproved      = "idea.approved"
	EventIdeaRejected      = "idea.rejected"
	EventIdeaStatusChanged = "idea.status_changed"
	EventIdeaDeleted       = "idea.deleted"
)

const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

// IdeaOutbox 想法生命周期事件表，与业务写入同事务落库
type IdeaOutbox struct {
	ID        uint64 `gorm:"primaryKey"`
	EventType string `gorm:"size:32;not null"`
	IdeaID    string `gorm:"size:36;not null;index"`
	Payload   string `gorm:"type:text;not null"`
	Status    int8   `gorm:"not null;default:0;index"` // 0=pending,1=sent,2=failed
	Retry     int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (IdeaOutbox) TableName() string { return "idea_outbox" }
