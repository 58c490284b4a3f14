package model

// IssueHash maps a grouping hash to its issue. The unique index on
// (project_id, value) is the serialization point for concurrent issue
// creation; a duplicate-key error on insert means another writer won.
type IssueHash struct {
	IssueHashID uint64 `gorm:"column:issue_hash_id;primaryKey;autoIncrement"`
	ProjectID   uint64 `gorm:"column:project_id;not null;uniqueIndex:idx_issue_hashes_project_value"`
	IssueID     uint64 `gorm:"column:issue_id;not null;index"`
	Value       string `gorm:"column:value;type:text;not null;uniqueIndex:idx_issue_hashes_project_value"`
}

func (IssueHash) TableName() string {
	return "issue_hashes"
}
