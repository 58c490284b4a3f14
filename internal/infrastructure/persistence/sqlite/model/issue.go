package model

type Issue struct {
	IssueID   uint64 `gorm:"column:issue_id;primaryKey;autoIncrement"`
	ProjectID uint64 `gorm:"column:project_id;not null;index"`
	ShortID   uint64 `gorm:"column:short_id;not null"`
	Title     string `gorm:"column:title;type:text;not null"`
	Culprit   string `gorm:"column:culprit;type:text"`
	Type      int8   `gorm:"column:type;not null;default:0"`
	Status    int8   `gorm:"column:status;not null;default:0"`
	Level     string `gorm:"column:level;type:text"`
	Count     uint64 `gorm:"column:count;not null;default:0"`
	FirstSeen string `gorm:"column:first_seen;type:text;not null"`
	LastSeen  string `gorm:"column:last_seen;type:text;not null"`
}

func (Issue) TableName() string {
	return "issues"
}
