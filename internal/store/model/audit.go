package model

import "gorm.io/datatypes"

// AuditMessageModel maps to 'audit_message' table. Payload holds the full
// message as emitted; the flat columns exist for filtering.
type AuditMessageModel struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement"`
	CloneID     string         `gorm:"column:clone_id;index"`
	MessageID   string         `gorm:"column:message_id"`
	FromEntity  string         `gorm:"column:from_entity"`
	ToEntity    string         `gorm:"column:to_entity"`
	Kind        string         `gorm:"column:kind"`
	Direction   string         `gorm:"column:direction"`
	Status      string         `gorm:"column:status;index"`
	ExitOutcome string         `gorm:"column:exit_outcome"`
	Rate        float64        `gorm:"column:rate"`
	Size        float64        `gorm:"column:size"`
	Payload     datatypes.JSON `gorm:"column:payload"`
	Timestamp   int64          `gorm:"column:timestamp;index"`
}

func (AuditMessageModel) TableName() string { return "audit_message" }
