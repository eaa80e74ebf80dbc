package database

import (
	"errors"

	"go-recon/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB defines the database instance containing the
// connection to the SQLite type database.
type DB struct {
	conn *gorm.DB
}

// New returns a new *DB instance backed by the SQLite file at path.
func New(path string) (*DB, error) {
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}

	if err = db.Migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate migrates the current database structures.
func (db *DB) Migrate() error {
	return db.conn.AutoMigrate(&SettingsDB{})
}

// UpdateSettings stores data as the current settings.
func (db *DB) UpdateSettings(data models.Settings) error {
	var row SettingsDB
	if err := db.conn.FirstOrCreate(&row, SettingsDB{Model: gorm.Model{ID: settingsID}}).Error; err != nil {
		return err
	}
	row.Concurrency = data.Concurrency
	row.ProbeRate = data.ProbeRate
	return db.conn.Save(&row).Error
}

// FetchSettings fetches the last saved settings. The boolean is false when
// nothing was saved yet.
func (db *DB) FetchSettings() (models.Settings, bool, error) {
	var row SettingsDB
	err := db.conn.First(&row, settingsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Settings{}, false, nil
	}
	if err != nil {
		return models.Settings{}, false, err
	}
	return models.Settings{
		Concurrency: row.Concurrency,
		ProbeRate:   row.ProbeRate,
	}, true, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
