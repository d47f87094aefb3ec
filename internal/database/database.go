// Package database holds the gorm/SQLite store for locally edited state:
// the system-instruction catalog and user preferences.
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Instruction is a stored system instruction. Position keeps catalog order.
type Instruction struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Content   string `gorm:"not null"`
	Position  int    `gorm:"index"`
	UpdatedAt time.Time
}

// Preference is a single key/value setting.
type Preference struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

// Store wraps the gorm handle.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at path and migrates it.
func Open(path string) (*Store, error) {
	if path == "" {
		path = filepath.Join("data", "ragchat.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := Migrate(db, &Instruction{}, &Preference{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Migrate runs AutoMigrate on the provided models.
func Migrate(db *gorm.DB, models ...interface{}) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Instructions returns every stored instruction in catalog order.
func (s *Store) Instructions() ([]Instruction, error) {
	var out []Instruction
	if err := s.db.Order("position asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to load instructions: %w", err)
	}
	return out, nil
}

// SaveInstruction inserts or updates an instruction by id.
func (s *Store) SaveInstruction(inst Instruction) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "content", "position", "updated_at"}),
	}).Create(&inst).Error
	if err != nil {
		return fmt.Errorf("failed to save instruction %s: %w", inst.ID, err)
	}
	return nil
}

// Preference returns the stored value for key and whether it exists.
func (s *Store) Preference(key string) (string, bool, error) {
	var pref Preference
	err := s.db.Where(&Preference{Key: key}).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load preference %s: %w", key, err)
	}
	return pref.Value, true, nil
}

// SetPreference stores value under key.
func (s *Store) SetPreference(key, value string) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Preference{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to save preference %s: %w", key, err)
	}
	return nil
}
