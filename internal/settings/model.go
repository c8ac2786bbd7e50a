package settings

import "gorm.io/datatypes"

// Option is a single named document in the options table.
type Option struct {
	Name             string         `gorm:"column:option_name;primaryKey;size:190;not null"`
	Value            datatypes.JSON `gorm:"column:option_value;not null"`
	Revision         string         `gorm:"column:revision;size:64;not null"`
	UpdatedAtSeconds int64          `gorm:"column:updated_at_s;not null"`
}

// TableName binds Option to the options table.
func (Option) TableName() string {
	return "options"
}
