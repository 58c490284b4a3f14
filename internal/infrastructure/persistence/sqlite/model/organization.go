package model

type Organization struct {
	OrganizationID    uint64 `gorm:"column:organization_id;primaryKey;autoIncrement"`
	Name              string `gorm:"column:name;type:text;not null"`
	IsAcceptingEvents bool   `gorm:"column:is_accepting_events;not null;default:1"`
	CreatedAt         string `gorm:"column:created_at;type:text;not null"`
}

func (Organization) TableName() string {
	return "organizations"
}
