package gemini

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"parksign-service/internal/domain/parking"
)

func TestBuildPromptIncludesContext(t *testing.T) {
	sc := ScanContext{
		Now: time.Date(2025, 6, 13, 9, 5, 0, 0, time.UTC),
		Profile: parking.Profile{
			HasDisabilityPermit: true,
			HasResidentPermit:   true,
			ResidentArea:        "Zone B",
		},
		Location: &parking.Coordinates{Latitude: 32.07961, Longitude: 34.78123},
	}

	prompt := buildPrompt(sc)

	assert.Contains(t, prompt, "09:05")
	assert.Contains(t, prompt, "Friday")
	assert.Contains(t, prompt, "2025-06-13")
	assert.Contains(t, prompt, "32.0796, 34.7812")
	assert.Contains(t, prompt, "Disability permit: yes")
	assert.Contains(t, prompt, "Resident permit: yes (Zone B)")
	assert.Contains(t, prompt, "Taxi permit: no")
}

func TestBuildPromptOmitsLocationWhenAbsent(t *testing.T) {
	sc := ScanContext{Now: time.Date(2025, 6, 13, 9, 5, 0, 0, time.UTC)}

	prompt := buildPrompt(sc)

	assert.NotContains(t, prompt, "- Location:")
	assert.Contains(t, prompt, "direction \"general\"")
}

func TestBuildPromptResidentPermitWithoutArea(t *testing.T) {
	sc := ScanContext{
		Now:     time.Now(),
		Profile: parking.Profile{HasResidentPermit: true},
	}

	prompt := buildPrompt(sc)
	assert.Contains(t, prompt, "Resident permit: yes (unspecified area)")
}
