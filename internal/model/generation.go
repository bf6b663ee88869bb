package model

import (
	"time"
)

// GenerationRecord 一次生成请求的元数据，不保存模型本身
type GenerationRecord struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	RequestID     string    `json:"request_id" gorm:"size:36;uniqueIndex;not null"`
	Prompt        string    `json:"prompt" gorm:"type:text"`
	Mode          string    `json:"mode" gorm:"size:10;not null"`            // new, edit
	StructureType string    `json:"structure_type" gorm:"size:20"`           // frame, beam, truss, basic
	Source        string    `json:"source" gorm:"size:20"`                   // generated, corrected, synthesized, fallback
	Status        string    `json:"status" gorm:"size:20;default:succeeded"` // succeeded, failed
	Attempts      int       `json:"attempts"`
	NodeCount     int       `json:"node_count"`
	MemberCount   int       `json:"member_count"`
	Corrections   string    `json:"corrections" gorm:"size:500"` // 逗号分隔的修正类型
	ErrorMsg      string    `json:"error_msg" gorm:"size:1000"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

func (GenerationRecord) TableName() string {
	return "generation_records"
}
