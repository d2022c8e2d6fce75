package storage

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"moonwatch/internal/astro"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNoHistory is returned when no observation was recorded for a location.
var ErrNoHistory = errors.New("no observations recorded")

type Database struct {
	db *gorm.DB
}

func NewDatabase(path string) (*Database, error) {
	if dir := filepath.Dir(path); !strings.HasPrefix(path, "file:") && path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Preference{}, &ObservationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) GetPreference(session, key string) (string, bool, error) {
	var pref Preference
	result := d.db.Where(&Preference{Session: session, Key: key}).Limit(1).Find(&pref)
	if result.Error != nil {
		return "", false, result.Error
	}
	if result.RowsAffected == 0 {
		return "", false, nil
	}
	return pref.Value, true, nil
}

func (d *Database) SetPreference(session, key, value string) error {
	pref := &Preference{Session: session, Key: key, Value: value}
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(pref).Error
}

func (d *Database) SaveObservation(obs astro.Observation) error {
	timestamp := obs.FetchedAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	record := &ObservationRecord{
		Timestamp:           timestamp,
		Date:                obs.Date.String(),
		Location:            strings.ToLower(strings.TrimSpace(obs.Location)),
		Latitude:            obs.Latitude,
		Longitude:           obs.Longitude,
		Timezone:            obs.Timezone,
		Hemisphere:          string(obs.Hemisphere),
		PhaseName:           obs.PhaseName,
		IlluminationPercent: obs.IlluminationPercent,
		CyclePercent:        obs.CyclePercent,
		Moonrise:            obs.Moonrise.String(),
		Moonset:             obs.Moonset.String(),
		Sunrise:             obs.Sunrise.String(),
		Sunset:              obs.Sunset.String(),
	}

	return d.db.Create(record).Error
}

func (d *Database) GetLatestObservation(location string) (*ObservationRecord, error) {
	var record ObservationRecord
	result := d.locationScope(location).Order("timestamp desc").First(&record)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w for %q", ErrNoHistory, location)
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &record, nil
}

// GetObservationHistory returns the newest records first. An empty
// location matches every location.
func (d *Database) GetObservationHistory(location string, limit int) ([]ObservationRecord, error) {
	if limit <= 0 {
		limit = 30
	}
	var records []ObservationRecord
	result := d.locationScope(location).Order("timestamp desc").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

func (d *Database) GetObservationsByDateRange(location, from, to string) ([]ObservationRecord, error) {
	var records []ObservationRecord
	result := d.locationScope(location).
		Where("date BETWEEN ? AND ?", from, to).
		Order("date asc").
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

func (d *Database) GetPhaseCounts(location string) ([]PhaseCount, error) {
	var counts []PhaseCount
	result := d.locationScope(location).
		Model(&ObservationRecord{}).
		Select("phase_name, COUNT(*) AS count").
		Group("phase_name").
		Order("count desc").
		Scan(&counts)
	if result.Error != nil {
		return nil, result.Error
	}
	return counts, nil
}

// CleanOldObservations deletes observations recorded more than olderThan
// ago.
func (d *Database) CleanOldObservations(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	result := d.db.Where("timestamp < ?", cutoff).Delete(&ObservationRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Removed %d observations older than %s", result.RowsAffected, olderThan)
	}
	return nil
}

func (d *Database) locationScope(location string) *gorm.DB {
	location = strings.ToLower(strings.TrimSpace(location))
	if location == "" {
		return d.db
	}
	return d.db.Where("location = ?", location)
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
