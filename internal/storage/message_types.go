package storage

import "time"

// EmployeeEventMessage 员工生命周期事件，经 outbox 发布到员工事件交换机
type EmployeeEventMessage struct {
	EventType  string    `json:"event_type"` // employee.upserted / employee.resigned / employee.deleted
	EmployeeID uint64    `json:"employee_id"`
	UserID     uint64    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	JobTitle   string    `json:"job_title,omitempty"`
	ChunkCount int       `json:"chunk_count"` // 事件发生后该员工的分块数
	OccurredAt time.Time `json:"occurred_at"`
}
