// Package repository persists completed run metrics via GORM, so a
// historical series of matching runs can be compared across time. It is
// strictly additive: nothing in the algorithm or the mandatory JSON/CSV
// artifact depends on a database being configured.
package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// RunRow represents the matching_runs table: one row per completed run.
type RunRow struct {
	ID                int64     `gorm:"column:id;primaryKey;autoIncrement"`
	S                 int       `gorm:"column:s"`
	R                 int       `gorm:"column:r"`
	N                 int64     `gorm:"column:n"`
	P                 int       `gorm:"column:p"`
	TotalMatchingSize int       `gorm:"column:total_matching_size"`
	TotalPhases       int       `gorm:"column:total_phases"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for RunRow.
func (RunRow) TableName() string { return "matching_runs" }

// PhaseRow represents the matching_run_phases table: one row per phase of
// a run, referencing its parent by RunID.
type PhaseRow struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RunID            int64     `gorm:"column:run_id;index"`
	PhaseIdx         int       `gorm:"column:phase_idx"`
	ActiveEdges      int64     `gorm:"column:active_edges"`
	MatchingSizeNew  int       `gorm:"column:matching_size_new"`
	P                float64   `gorm:"column:p"`
	DegStats         JSONField `gorm:"column:deg_stats;type:json"`
	StallRate        float64   `gorm:"column:stall_rate"`
	BallStats        JSONField `gorm:"column:ball_stats;type:json"`
	MISSelectionRate float64   `gorm:"column:mis_selection_rate"`
	MaxCommBytes     int64     `gorm:"column:max_comm_bytes"`
	MaxCommItems     int64     `gorm:"column:max_comm_items"`
	WallMicros       int64     `gorm:"column:wall_micros"`
}

// TableName returns the table name for PhaseRow.
func (PhaseRow) TableName() string { return "matching_run_phases" }

// JSONField stores an arbitrary JSON-encodable value as a single column.
type JSONField []byte

// Value implements driver.Valuer.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func marshalJSONField(v interface{}) JSONField {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return JSONField(b)
}
