package storage

import (
	"time"

	"gorm.io/gorm"
)

// Preference is one persisted key/value pair for a browser session.
type Preference struct {
	gorm.Model
	Session string `gorm:"uniqueIndex:idx_session_key;size:64" json:"session"`
	Key     string `gorm:"uniqueIndex:idx_session_key;size:64" json:"key"`
	Value   string `json:"value"`
}

type ObservationRecord struct {
	gorm.Model
	Timestamp time.Time `gorm:"index" json:"timestamp"`

	// Query
	Date     string `gorm:"index;size:10" json:"date"`
	Location string `gorm:"index" json:"location"`

	// Place
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Timezone   string  `json:"timezone"`
	Hemisphere string  `json:"hemisphere"`

	// Moon
	PhaseName           string  `json:"phase_name"`
	IlluminationPercent float64 `json:"illumination_percent"`
	CyclePercent        int     `json:"cycle_percent"`
	Moonrise            string  `json:"moonrise"`
	Moonset             string  `json:"moonset"`

	// Sun
	Sunrise string `json:"sunrise"`
	Sunset  string `json:"sunset"`
}

type PhaseCount struct {
	PhaseName string `json:"phase_name"`
	Count     int64  `json:"count"`
}
