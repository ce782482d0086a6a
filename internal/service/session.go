// Package service hosts the session state machine: the single-writer
// controller that sequences onboarding, capture, interpretation and
// history reconciliation. All mutable scan state lives here and is
// mirrored to the local store; no other component writes it.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"parksign-service/internal/domain/parking"
	"parksign-service/internal/gemini"
	"parksign-service/internal/geo"
	"parksign-service/internal/imaging"
	"parksign-service/internal/store"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	// ErrBusy gates re-entry: only one interpretation request may be in
	// flight per session.
	ErrBusy = errors.New("interpretation in progress")
	// ErrSuperseded marks a completion that arrived for a request the
	// session no longer cares about; its result is discarded.
	ErrSuperseded = errors.New("request superseded")
)

type State string

const (
	StateOnboarding  State = "onboarding"
	StateProfileEdit State = "profile_edit"
	StateIdle        State = "idle"
	StateCapturing   State = "capturing"
	StateLoading     State = "loading"
	StateResult      State = "result"
	StateError       State = "error"
)

const historyCap = 15

// Interpreter is the sign interpretation client seen by the session.
type Interpreter interface {
	Interpret(ctx context.Context, sc gemini.ScanContext) (*parking.Interpretation, error)
}

// CloudSync mirrors profile state to the cloud profile table. A nil
// CloudSync means local-only mode; every mirror call is best-effort.
type CloudSync interface {
	UpsertProfile(ctx context.Context, p parking.Profile) error
	DeleteUserData(ctx context.Context, email string) error
}

// Session is the in-memory controller for one device. Handlers run
// concurrently, so the mutex plus the in-flight flag reproduce the
// single-writer discipline; the generation counter discards completions
// for superseded requests.
type Session struct {
	store   *store.Store
	interp  Interpreter
	locator geo.Locator
	cloud   CloudSync
	log     zerolog.Logger

	mu              sync.Mutex
	state           State
	prevState       State
	profile         *parking.Profile
	history         []parking.HistoryItem
	currentImage    []byte
	currentAnalysis []byte
	currentResult   *parking.Interpretation
	errMsg          string
	loading         bool
	gen             uint64
}

func NewSession(ctx context.Context, st *store.Store, interp Interpreter, locator geo.Locator, cloud CloudSync, log zerolog.Logger) *Session {
	s := &Session{
		store:   st,
		interp:  interp,
		locator: locator,
		cloud:   cloud,
		log:     log,
	}
	s.profile = st.Profile(ctx)
	s.history = st.History(ctx)
	if st.OnboardingCompleted(ctx) && s.profile != nil {
		s.state = StateIdle
	} else {
		s.state = StateOnboarding
	}
	log.Info().
		Str("state", string(s.state)).
		Int("history_len", len(s.history)).
		Msg("session restored from local store")
	return s
}

// View is a read-only snapshot for the API layer. The current image is
// exposed as a flag only; clients that captured the photo already have it.
type View struct {
	State        State                   `json:"state"`
	Profile      *parking.Profile        `json:"profile,omitempty"`
	HasImage     bool                    `json:"has_image"`
	Result       *parking.Interpretation `json:"result,omitempty"`
	Error        string                  `json:"error,omitempty"`
	HistoryCount int                     `json:"history_count"`
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		State:        s.state,
		Profile:      s.profile,
		HasImage:     len(s.currentImage) > 0,
		Result:       s.currentResult,
		Error:        s.errMsg,
		HistoryCount: len(s.history),
	}
}

// CompleteOnboarding validates and persists the initial profile, stamps
// the legal-acceptance date on the first-ever completion, and enters Idle.
func (s *Session) CompleteOnboarding(ctx context.Context, p parking.Profile) error {
	if !p.Complete() {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOnboarding {
		return fmt.Errorf("%w: onboarding already completed", ErrInvalidInput)
	}
	if err := s.store.SaveProfile(ctx, &p); err != nil {
		return err
	}
	if s.store.LegalAcceptedDate(ctx) == "" {
		if err := s.store.SetLegalAcceptedDate(ctx, time.Now().Format(time.RFC3339)); err != nil {
			s.log.Warn().Err(err).Msg("failed to stamp legal acceptance date")
		}
	}
	if err := s.store.SetOnboardingCompleted(ctx, true); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist onboarding flag")
	}
	s.profile = &p
	s.state = StateIdle
	s.syncProfileLocked(ctx)
	return nil
}

// BeginProfileEdit enters ProfileEdit without disturbing scan state.
func (s *Session) BeginProfileEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading || s.state == StateOnboarding || s.state == StateProfileEdit {
		return fmt.Errorf("%w: cannot edit profile in state %s", ErrInvalidInput, s.state)
	}
	s.prevState = s.state
	s.state = StateProfileEdit
	return nil
}

func (s *Session) CancelProfileEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateProfileEdit {
		return fmt.Errorf("%w: not editing profile", ErrInvalidInput)
	}
	s.state = s.prevState
	return nil
}

// SaveProfile replaces the profile wholesale; partial writes do not exist.
func (s *Session) SaveProfile(ctx context.Context, p parking.Profile) error {
	if !p.Complete() {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateProfileEdit {
		return fmt.Errorf("%w: not editing profile", ErrInvalidInput)
	}
	if err := s.store.SaveProfile(ctx, &p); err != nil {
		return err
	}
	s.profile = &p
	s.state = s.prevState
	s.syncProfileLocked(ctx)
	return nil
}

// syncProfileLocked mirrors the profile to the cloud table. Best-effort:
// errors are logged, never surfaced.
func (s *Session) syncProfileLocked(ctx context.Context) {
	if s.cloud == nil || s.profile == nil {
		return
	}
	if err := s.cloud.UpsertProfile(ctx, *s.profile); err != nil {
		s.log.Warn().Err(err).Str("email", s.profile.Email).Msg("cloud profile sync failed")
		return
	}
	now := time.Now()
	s.profile.LastSynced = &now
	if err := s.store.SaveProfile(ctx, s.profile); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist sync timestamp")
	}
}

// Scan runs the full capture flow: normalize, locate, interpret, merge
// into history, persist. On failure the image is preserved for retry and
// history is untouched.
func (s *Session) Scan(ctx context.Context, raw []byte) (*parking.HistoryItem, error) {
	analysis, err := imaging.AnalysisDerivative(raw)
	if err != nil {
		return nil, err
	}
	historyImg, err := imaging.HistoryDerivative(raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.state == StateOnboarding || s.state == StateProfileEdit {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot scan in state %s", ErrInvalidInput, s.state)
	}
	s.state = StateCapturing
	s.currentImage = historyImg
	s.currentAnalysis = analysis
	s.currentResult = nil
	token, profile := s.beginInterpretationLocked()
	s.mu.Unlock()

	return s.runInterpretation(ctx, token, profile, analysis, historyImg)
}

// Recheck re-runs interpretation against the retained full-resolution
// image with fresh time and location. It deliberately appends a new
// history entry: rechecks are an audit trail, not in-place updates.
func (s *Session) Recheck(ctx context.Context) (*parking.HistoryItem, error) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.state != StateResult {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: no result to recheck", ErrInvalidInput)
	}
	analysis := s.currentAnalysis
	historyImg := s.currentImage
	token, profile := s.beginInterpretationLocked()
	s.mu.Unlock()

	return s.runInterpretation(ctx, token, profile, analysis, historyImg)
}

// beginInterpretationLocked claims the single in-flight slot. The caller
// must hold the mutex and have already rejected on s.loading; claiming
// in the same critical section as that check is what keeps two callers
// from dispatching at once.
func (s *Session) beginInterpretationLocked() (uint64, parking.Profile) {
	s.state = StateLoading
	s.errMsg = ""
	s.loading = true
	s.gen++
	profile := parking.Profile{}
	if s.profile != nil {
		profile = *s.profile
	}
	return s.gen, profile
}

// runInterpretation is the shared Loading → Result/Error path. The lock
// is dropped for the duration of the network call; the generation token
// claimed with the in-flight slot decides whether the completion still
// applies.
func (s *Session) runInterpretation(ctx context.Context, token uint64, profile parking.Profile, analysisImg, historyImg []byte) (*parking.HistoryItem, error) {
	location := s.fetchLocation(ctx)
	now := time.Now()

	result, err := s.interp.Interpret(ctx, gemini.ScanContext{
		Image:    analysisImg,
		Now:      now,
		Profile:  profile,
		Location: location,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.gen {
		s.log.Debug().Uint64("token", token).Msg("discarding superseded interpretation")
		return nil, ErrSuperseded
	}
	s.loading = false

	if err != nil {
		s.state = StateError
		s.errMsg = userMessage(err)
		s.log.Error().Err(err).Msg("interpretation failed")
		return nil, err
	}

	item := parking.HistoryItem{
		ID:             parking.NewHistoryID(),
		CreatedAt:      now,
		Image:          historyImg,
		Interpretation: *result,
	}
	s.history = append([]parking.HistoryItem{item}, s.history...)
	if len(s.history) > historyCap {
		s.history = s.history[:historyCap]
	}
	if err := s.store.SaveHistory(ctx, s.history); err != nil {
		// Local write failure costs durability, never the scan.
		s.log.Warn().Err(err).Msg("failed to persist history")
	}
	s.currentImage = historyImg
	s.currentAnalysis = analysisImg
	s.currentResult = result
	s.state = StateResult

	s.log.Info().
		Str("item_id", item.ID).
		Int("results", len(result.Results)).
		Msg("scan interpreted")
	return &item, nil
}

func (s *Session) fetchLocation(ctx context.Context) *parking.Coordinates {
	if s.locator == nil {
		return nil
	}
	coords, err := s.locator.Locate(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("no location for scan")
		return nil
	}
	return coords
}

// Reset returns to Idle, clearing the transient scan state only.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return ErrBusy
	}
	if s.state != StateResult && s.state != StateError && s.state != StateCapturing {
		return fmt.Errorf("%w: nothing to reset in state %s", ErrInvalidInput, s.state)
	}
	s.gen++ // anything still in flight is now superseded
	s.currentImage = nil
	s.currentAnalysis = nil
	s.currentResult = nil
	s.errMsg = ""
	s.state = StateIdle
	return nil
}

// SetFeedback tags exactly the history entry whose image bytes equal the
// currently displayed image.
func (s *Session) SetFeedback(ctx context.Context, fb parking.Feedback) error {
	if !fb.Valid() {
		return fmt.Errorf("%w: feedback must be up or down", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.currentImage) == 0 {
		return fmt.Errorf("%w: no current scan", ErrNotFound)
	}
	for i := range s.history {
		if bytes.Equal(s.history[i].Image, s.currentImage) {
			s.history[i].Feedback = fb
			if err := s.store.SaveHistory(ctx, s.history); err != nil {
				s.log.Warn().Err(err).Msg("failed to persist feedback")
			}
			return nil
		}
	}
	return fmt.Errorf("%w: current scan is not in history", ErrNotFound)
}

// DeleteHistoryItem removes one entry; relative order of the rest is
// unchanged.
func (s *Session) DeleteHistoryItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.history {
		if s.history[i].ID == id {
			s.history = append(s.history[:i], s.history[i+1:]...)
			if err := s.store.SaveHistory(ctx, s.history); err != nil {
				s.log.Warn().Err(err).Msg("failed to persist history deletion")
			}
			return nil
		}
	}
	return fmt.Errorf("%w: history item %s", ErrNotFound, id)
}

func (s *Session) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	if err := s.store.SaveHistory(ctx, nil); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist history clear")
	}
	return nil
}

// History returns a copy of the bounded scan history, newest first.
func (s *Session) History() []parking.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]parking.HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Profile() *parking.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

// CurrentScan exposes the displayed verdict and its full-resolution
// image to the report pipeline. The history thumbnail stays internal;
// report evidence is the analysis copy.
func (s *Session) CurrentScan() ([]byte, *parking.Interpretation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentAnalysis, s.currentResult
}

// DeleteCloudData removes the user's rows from the cloud tables. Without
// cloud configuration this is a successful no-op.
func (s *Session) DeleteCloudData(ctx context.Context) error {
	s.mu.Lock()
	cloud := s.cloud
	var email string
	if s.profile != nil {
		email = s.profile.Email
	}
	s.mu.Unlock()

	if cloud == nil || email == "" {
		return nil
	}
	return cloud.DeleteUserData(ctx, email)
}

// userMessage maps interpretation failures onto the strings shown on the
// error screen.
func userMessage(err error) string {
	switch {
	case errors.Is(err, gemini.ErrConfiguration):
		return err.Error()
	case errors.Is(err, gemini.ErrValidation):
		return "The sign could not be interpreted. Please try again."
	case errors.Is(err, gemini.ErrNetwork):
		return "The interpretation service is unreachable. Check your connection and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
