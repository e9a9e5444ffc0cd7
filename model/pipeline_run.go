package model

import "time"

// PipelineRun 记录一次流水线执行的审计信息，使用 GORM 持久化
type PipelineRun struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MeetingID int64     `gorm:"index" json:"meetingId"`
	Stage     string    `gorm:"size:32" json:"stage"` // 失败时到达的阶段：transcribe / analyze / persist
	Status    string    `gorm:"size:20" json:"status"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	ElapsedMs int64     `json:"elapsedMs"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定表名
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}
