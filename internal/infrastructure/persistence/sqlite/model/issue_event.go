package model

// IssueEvent rows live in weekly partition tables named
// issue_events_<year>w<week>; TableName returns the base name used as the
// partition prefix. Rows are append-only and never updated.
type IssueEvent struct {
	EventID   string `gorm:"column:event_id;primaryKey;type:text"`
	IssueID   uint64 `gorm:"column:issue_id;not null;index"`
	Type      int8   `gorm:"column:type;not null;default:0"`
	Created   string `gorm:"column:created;type:text;not null;index"`
	Payload   string `gorm:"column:payload;type:text;not null"`
}

func (IssueEvent) TableName() string {
	return "issue_events"
}
