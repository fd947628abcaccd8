package models

import "strings"

// Student represents an enrolled learner.
type Student struct {
	ID                     int64  `json:"id,omitempty"`
	Login                  string `json:"login" validate:"required,max=32,login"`
	FirstName              string `json:"first_name" validate:"max=128"`
	LastName               string `json:"last_name" validate:"max=128"`
	Email                  string `json:"email" validate:"omitempty,email"`
	Enabled                bool   `json:"enabled"`
	HasCollaborationPolicy bool   `json:"has_collaboration_policy"`
}

// FullName joins first and last name.
func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// TA represents a teaching assistant that grades.
type TA struct {
	ID            int64  `json:"id,omitempty"`
	Login         string `json:"login" validate:"required,max=32,login"`
	FirstName     string `json:"first_name" validate:"max=128"`
	LastName      string `json:"last_name" validate:"max=128"`
	Admin         bool   `json:"admin"`
	DefaultGrader bool   `json:"default_grader"`
}

// FullName joins first and last name.
func (t *TA) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

// ValidityCheck controls whether student writes validate the login format.
type ValidityCheck int

const (
	// CheckValidity validates every field; production call sites use it.
	CheckValidity ValidityCheck = iota
	// BypassValidity skips login format validation for tests and admin tools.
	BypassValidity
)
