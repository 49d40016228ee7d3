package validator

import (
	"errors"
	"testing"
)

func TestValidator_LoginRequest(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		req       LoginRequest
		wantField string
	}{
		{name: "valid", req: LoginRequest{Email: "a@b.co", Password: "x", Role: "clinic"}},
		{name: "missing email", req: LoginRequest{Password: "x", Role: "admin"}, wantField: "email"},
		{name: "bad role", req: LoginRequest{Email: "a@b.co", Password: "x", Role: "student"}, wantField: "role"},
		{name: "missing password", req: LoginRequest{Email: "a@b.co", Role: "admin"}, wantField: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("Validate() error = %v, want ErrValidation", err)
			}
			var ve ValidationErrors
			if !errors.As(err, &ve) || len(ve) != 1 || ve[0].Field != tt.wantField {
				t.Errorf("Validate() errors = %+v, want field %q", ve, tt.wantField)
			}
		})
	}
}

func TestValidator_RedactsSecrets(t *testing.T) {
	v := New()

	err := v.Validate(&RegisterClinicStaffRequest{
		Name:     "Nurse",
		JobRole:  "Nurse",
		StaffID:  "N-1",
		Email:    "nurse@clinic.test",
		Password: "abc",
	})
	var ve ValidationErrors
	if !errors.As(err, &ve) {
		t.Fatalf("Validate() error = %v", err)
	}
	if ve[0].Field != "password" || ve[0].Value != nil {
		t.Errorf("password error leaked value: %+v", ve[0])
	}
}

func TestValidator_StudentID(t *testing.T) {
	v := New()

	for _, id := range []string{"", "ST 1", "ST_1", "a/b"} {
		if err := v.Validate(&RegisterStudentRequest{Name: "Kim", StudentID: id}); err == nil {
			t.Errorf("student id %q accepted", id)
		}
	}
	if err := v.Validate(&RegisterStudentRequest{Name: "Kim", StudentID: "ST-001"}); err != nil {
		t.Errorf("valid student rejected: %v", err)
	}
}

func TestValidator_SecurityAnswerRequiredWithQuestion(t *testing.T) {
	v := New()
	req := RegisterSupervisorRequest{
		Name:             "Sup",
		StaffID:          "S-1",
		Email:            "sup@clinic.test",
		Password:         "secret1",
		SecurityQuestion: "First pet?",
	}
	if err := v.Validate(&req); err == nil {
		t.Fatal("missing security answer accepted")
	}
	req.SecurityAnswer = "Rex"
	if err := v.Validate(&req); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidator_DashboardView(t *testing.T) {
	v := New()
	if err := v.Validate(&SwitchViewRequest{View: "stations"}); err != nil {
		t.Errorf("stations rejected: %v", err)
	}
	if err := v.Validate(&SwitchViewRequest{View: "settings"}); err == nil {
		t.Error("unknown view accepted")
	}
}
