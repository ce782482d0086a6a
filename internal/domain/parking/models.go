package parking

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirectionLeft    Direction = "left"
	DirectionRight   Direction = "right"
	DirectionGeneral Direction = "general"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionLeft, DirectionRight, DirectionGeneral:
		return true
	}
	return false
}

type Status string

const (
	StatusAllowed    Status = "ALLOWED"
	StatusForbidden  Status = "FORBIDDEN"
	StatusRestricted Status = "RESTRICTED"
	StatusUnknown    Status = "UNKNOWN"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAllowed, StatusForbidden, StatusRestricted, StatusUnknown:
		return true
	}
	return false
}

type DiagnosticCode string

const (
	DiagnosticBlurry        DiagnosticCode = "BLURRY"
	DiagnosticNoSign        DiagnosticCode = "NO_SIGN"
	DiagnosticMultipleSigns DiagnosticCode = "MULTIPLE_SIGNS"
	DiagnosticAmbiguous     DiagnosticCode = "AMBIGUOUS"
	DiagnosticSuccess       DiagnosticCode = "SUCCESS"
)

type Feedback string

const (
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

func (f Feedback) Valid() bool {
	return f == FeedbackUp || f == FeedbackDown
}

// Profile carries the user's identity and declared parking exemptions.
// The permit flags are forwarded to the vision model as context and are
// not independently verified. Email doubles as the cloud sync key.
type Profile struct {
	FullName            string     `json:"full_name"`
	Email               string     `json:"email"`
	VehicleNumber       string     `json:"vehicle_number"`
	HasDisabilityPermit bool       `json:"has_disability_permit"`
	HasResidentPermit   bool       `json:"has_resident_permit"`
	HasLoadingPermit    bool       `json:"has_loading_permit"`
	HasBusinessPermit   bool       `json:"has_business_permit"`
	HasAuthorizedPermit bool       `json:"has_authorized_permit"`
	HasTaxiPermit       bool       `json:"has_taxi_permit"`
	ResidentArea        string     `json:"resident_area,omitempty"`
	LastSynced          *time.Time `json:"last_synced,omitempty"`
}

// Complete reports whether the profile can leave onboarding.
func (p *Profile) Complete() bool {
	return ValidEmail(p.Email)
}

// ValidEmail runs a structural check, not a deliverability one.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// DirectionalResult is one verdict scoped to a detected arrow direction,
// or to the whole sign when no arrows are visible.
type DirectionalResult struct {
	Direction        Direction `json:"direction"`
	Status           Status    `json:"status"`
	CanParkNow       bool      `json:"canParkNow"`
	Summary          string    `json:"summary"`
	Explanation      string    `json:"explanation"`
	Rules            []string  `json:"rules"`
	PermitRequired   bool      `json:"permitRequired"`
	PermitApplied    string    `json:"permitApplied,omitempty"`
	NextStatusChange string    `json:"nextStatusChange,omitempty"`
	RemainingMinutes *int      `json:"remainingMinutes,omitempty"`
}

type Diagnostic struct {
	Code       DiagnosticCode `json:"code"`
	Message    string         `json:"message"`
	Suggestion string         `json:"suggestion,omitempty"`
}

// Interpretation is the full structured response for one scanned sign.
// Immutable once created; attached to exactly one HistoryItem.
type Interpretation struct {
	Results    []DirectionalResult `json:"results"`
	Diagnostic *Diagnostic         `json:"diagnostic,omitempty"`
}

// Primary returns the result shown first to the user.
func (i *Interpretation) Primary() *DirectionalResult {
	if i == nil || len(i.Results) == 0 {
		return nil
	}
	return &i.Results[0]
}

// HistoryItem is one past scan in the bounded local history.
// Image holds the storage-optimized derivative, not the capture itself.
type HistoryItem struct {
	ID             string         `json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	Image          []byte         `json:"image"`
	Interpretation Interpretation `json:"interpretation"`
	Feedback       Feedback       `json:"feedback,omitempty"`
}

// NewHistoryID returns a time-based unique token.
func NewHistoryID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// Report sources.
const (
	ReportSourceOriginal = "Original"
	ReportSourceReupload = "Re-upload"
)

// Report is a user-submitted correction record. It snapshots the disputed
// verdict by value and is never mutated after submission.
type Report struct {
	UserEmail     string    `json:"user_email"`
	IssueCategory string    `json:"issue_category"`
	Description   string    `json:"description"`
	AISummary     string    `json:"ai_summary"`
	AIExplanation string    `json:"ai_explanation"`
	Timestamp     time.Time `json:"timestamp"`
	ImageAttached bool      `json:"image_attached"`
	ImageURL      string    `json:"image_url,omitempty"`
	Source        string    `json:"source"`
}

// Coordinates is a street-level location fix.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
