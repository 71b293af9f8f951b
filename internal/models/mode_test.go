package models_test

import (
	"testing"

	"launchpad-ai-pipeline/internal/models"
)

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		override string
		want     models.OperatingMode
	}{
		{"no key no override", "", "", models.ModeDemo},
		{"real key", "AIza-real-key", "", models.ModeProduction},
		{"placeholder key", models.PlaceholderAPIKey, "", models.ModeDemo},
		{"demo override wins over real key", "AIza-real-key", "demo", models.ModeDemo},
		{"demo override case insensitive", "AIza-real-key", " DEMO ", models.ModeDemo},
		{"production override without key stays demo", "", "production", models.ModeDemo},
		{"production override with placeholder stays demo", models.PlaceholderAPIKey, "production", models.ModeDemo},
		{"production override with key", "AIza-real-key", "production", models.ModeProduction},
		{"whitespace key is no key", "   ", "", models.ModeDemo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := models.ResolveMode(tt.apiKey, tt.override)
			if got != tt.want {
				t.Errorf("ResolveMode(%q, %q) = %s, want %s", tt.apiKey, tt.override, got, tt.want)
			}
		})
	}
}
