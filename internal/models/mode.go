package models

import "strings"

type OperatingMode string

const (
	ModeDemo       OperatingMode = "demo"
	ModeProduction OperatingMode = "production"
)

// PlaceholderAPIKey is the shipped default key value. It never counts as a
// real credential.
const PlaceholderAPIKey = "demo-key-placeholder"

// ResolveMode decides the operating mode from an API key and an optional
// explicit override. Pure and total: every input combination maps to a mode.
func ResolveMode(apiKey, override string) OperatingMode {
	switch strings.ToLower(strings.TrimSpace(override)) {
	case string(ModeDemo):
		return ModeDemo
	}

	key := strings.TrimSpace(apiKey)
	if key != "" && key != PlaceholderAPIKey {
		return ModeProduction
	}
	return ModeDemo
}
