package database

import "gorm.io/gorm"

// SettingsDB is the single persisted row of runtime scan settings.
type SettingsDB struct {
	gorm.Model
	Concurrency int     `gorm:"column:concurrency"`
	ProbeRate   float64 `gorm:"column:probe_rate"`
}

// settingsID is the primary key of the only settings row.
const settingsID = 1
