package models

import "time"

type Student struct {
	StudentID  string    `json:"student_id" gorm:"primaryKey;size:64"`
	Name       string    `json:"name" gorm:"not null;size:100;index"`
	Program    string    `json:"program,omitempty" gorm:"size:100"`
	Year       string    `json:"year,omitempty" gorm:"size:20"`
	Hostel     string    `json:"hostel,omitempty" gorm:"size:100"`
	ClinicCard string    `json:"clinic_card,omitempty" gorm:"size:64"`
	Age        *int      `json:"age,omitempty"`
	Phone      string    `json:"phone,omitempty" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Student) TableName() string {
	return "students"
}
