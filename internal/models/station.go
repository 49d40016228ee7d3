package models

import (
	"fmt"
	"time"
)

type StationStatus string

const (
	StationAvailable StationStatus = "available"
	StationOccupied  StationStatus = "occupied"
)

// Station is an examination seat. Status is occupied exactly when AssignedTo is set.
type Station struct {
	StationID   string        `json:"station_id" gorm:"primaryKey;size:32"`
	Status      StationStatus `json:"status" gorm:"not null;size:20;default:available"`
	AssignedTo  *string       `json:"assigned_to" gorm:"size:64"`
	SessionCode *string       `json:"session_code" gorm:"size:16"`
	AssignedAt  *time.Time    `json:"assigned_at"`
	Position    int           `json:"-" gorm:"not null;default:0;index"`
}

func (Station) TableName() string {
	return "stations"
}

// StationIDFor returns the pool id for a 1-based index (S1..Sn)
func StationIDFor(i int) string {
	return fmt.Sprintf("S%d", i)
}

func (s *Station) Occupy(studentID, code string, at time.Time) {
	s.Status = StationOccupied
	s.AssignedTo = &studentID
	s.SessionCode = &code
	s.AssignedAt = &at
}

func (s *Station) Release() {
	s.Status = StationAvailable
	s.AssignedTo = nil
	s.SessionCode = nil
	s.AssignedAt = nil
}

// Consistent reports whether status and assignment agree
func (s *Station) Consistent() bool {
	return (s.Status == StationOccupied) == (s.AssignedTo != nil)
}

// SessionCodeRecord is the append-only audit row written on every assignment
type SessionCodeRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Station   string    `json:"station" gorm:"not null;size:32;index"`
	Student   string    `json:"student" gorm:"not null;size:64;index"`
	Code      string    `json:"code" gorm:"not null;size:16"`
	IssuedBy  string    `json:"issued_by" gorm:"size:255"`
	Timestamp time.Time `json:"ts" gorm:"not null;index"`
}

func (SessionCodeRecord) TableName() string {
	return "session_codes"
}
