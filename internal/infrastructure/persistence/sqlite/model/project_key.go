package model

// ProjectKey is the DSN credential issued to client SDKs. PublicKey is the
// canonical dashed UUID string; it is immutable once issued.
type ProjectKey struct {
	ProjectKeyID uint64 `gorm:"column:project_key_id;primaryKey;autoIncrement"`
	ProjectID    uint64 `gorm:"column:project_id;not null;index"`
	PublicKey    string `gorm:"column:public_key;type:text;not null;uniqueIndex"`
	Label        string `gorm:"column:label;type:text"`
	CreatedAt    string `gorm:"column:created_at;type:text;not null"`
}

func (ProjectKey) TableName() string {
	return "project_keys"
}
