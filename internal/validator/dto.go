package validator

import "github.com/SAP-F-2025/clinic-service/internal/models"

type LoginRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,user_role"`
}

type SwitchViewRequest struct {
	View models.DashboardView `json:"view" validate:"required,dashboard_view"`
}

// RegisterSupervisorRequest mirrors the supervisor registration form
type RegisterSupervisorRequest struct {
	Name             string `json:"name" validate:"required,max=100"`
	StaffID          string `json:"staff_id" validate:"required,max=64"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=6,max=128"`
	SecurityQuestion string `json:"security_question" validate:"omitempty,max=200"`
	SecurityAnswer   string `json:"security_answer" validate:"required_with=SecurityQuestion,max=200"`
}

type RegisterClinicStaffRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	JobRole  string `json:"job_role" validate:"required,max=100"`
	StaffID  string `json:"staff_id" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type RegisterStudentRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	StudentID  string `json:"student_id" validate:"record_id,max=64"`
	Program    string `json:"program" validate:"omitempty,max=100"`
	Year       string `json:"year" validate:"omitempty,max=20"`
	Hostel     string `json:"hostel" validate:"omitempty,max=100"`
	ClinicCard string `json:"clinic_card" validate:"omitempty,max=64"`
	Age        *int   `json:"age" validate:"omitempty,gte=0,lte=150"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
}

type AssignStationRequest struct {
	StudentID string `json:"student_id" validate:"required,max=64"`
}

type SendMessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}
