package model

import "time"

const (
	SettingTypeString  = "string"
	SettingTypeBoolean = "boolean"
	SettingTypeDecimal = "decimal"
	SettingTypeInteger = "integer"
)

// SystemSetting 运营参数 key/value 表，value 统一存字符串，按 type 解析
type SystemSetting struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Key         string    `gorm:"column:key;type:varchar(100);uniqueIndex;not null" json:"key"`
	Value       string    `gorm:"type:text" json:"value"`
	Type        string    `gorm:"type:varchar(20);not null;default:string" json:"type"`
	Description string    `gorm:"type:varchar(255)" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}
