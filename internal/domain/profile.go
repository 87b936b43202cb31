package domain

import (
	"time"

	"github.com/google/uuid"
)

// SoftwareContext describes the reader's software background
type SoftwareContext struct {
	Languages       []string `json:"languages" validate:"required"`
	ExperienceLevel string   `json:"experience_level" validate:"required,max=50"`
	PreferredTools  []string `json:"preferred_tools"`
}

// HardwareContext describes the reader's hardware setup
type HardwareContext struct {
	Devices     []string `json:"devices"`
	Constraints []string `json:"constraints"`
}

// UserProfile is the background profile submitted after sign-up
type UserProfile struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	SoftwareContext SoftwareContext `json:"software_context"`
	HardwareContext HardwareContext `json:"hardware_context"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ProfileRequest is the payload for creating or updating a profile
type ProfileRequest struct {
	SoftwareContext SoftwareContext `json:"software_context" validate:"required"`
	HardwareContext HardwareContext `json:"hardware_context" validate:"required"`
}
