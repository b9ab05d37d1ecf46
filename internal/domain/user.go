// Package domain contains core domain types for the SmartKissan application.
package domain

import (
	"time"
)

// User represents an anonymous per-device user and the farmer profile attached to it.
type User struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Profile    Profile   `json:"profile"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Profile holds the farmer details shown on the profile page.
type Profile struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone,omitempty"`
	Region          string   `json:"region,omitempty"`
	FarmSize        float64  `json:"farm_size,omitempty"`
	PrimaryCrops    []string `json:"primary_crops,omitempty"`
	IsAuthenticated bool     `json:"is_authenticated"`
}

// DemoProfile returns the profile produced by the mock login.
func DemoProfile(email string) Profile {
	return Profile{
		Name:            "Demo Farmer",
		Email:           email,
		Phone:           "+91 98765 43210",
		Region:          "Punjab",
		FarmSize:        5,
		PrimaryCrops:    []string{"Wheat", "Rice"},
		IsAuthenticated: true,
	}
}

// DisplayName returns the profile name, falling back to the anonymous username.
func (u *User) DisplayName() string {
	if u.Profile.Name != "" {
		return u.Profile.Name
	}
	return u.Username
}
