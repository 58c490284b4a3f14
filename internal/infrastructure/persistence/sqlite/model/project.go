package model

type Project struct {
	ProjectID        uint64 `gorm:"column:project_id;primaryKey;autoIncrement"`
	OrganizationID   uint64 `gorm:"column:organization_id;not null;index"`
	Name             string `gorm:"column:name;type:text;not null"`
	ScrubIPAddresses bool   `gorm:"column:scrub_ip_addresses;not null;default:1"`
	CreatedAt        string `gorm:"column:created_at;type:text;not null"`
}

func (Project) TableName() string {
	return "projects"
}
