// Package report implements the feedback/report pipeline: image upload,
// durable report record, best-effort email digest. It is a side path off
// the result screen and never blocks the scan flow.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"parksign-service/internal/domain/parking"
	"parksign-service/internal/repository"
	"parksign-service/internal/storage"
)

var ErrSubmission = errors.New("report submission failed")

const emailTimeout = 10 * time.Second

// ObjectUploader is satisfied by storage.Uploader.
type ObjectUploader interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
}

// Recorder is satisfied by repository.CloudRepository.
type Recorder interface {
	CreateReport(ctx context.Context, rec *repository.ReportRecord) error
}

// Notifier delivers the human-readable digest.
type Notifier interface {
	Notify(ctx context.Context, subject, replyEmail, message string) error
}

// Submission is one user-initiated correction of a displayed verdict.
type Submission struct {
	Category    string
	Description string
	Profile     parking.Profile
	Image       []byte
	Result      *parking.DirectionalResult
	Source      string
}

type Result struct {
	Success   bool   `json:"success"`
	ImageURL  string `json:"image_url,omitempty"`
	EmailSent bool   `json:"email_sent"`
}

type Pipeline struct {
	uploader ObjectUploader
	recorder Recorder
	notifier Notifier
	log      zerolog.Logger
}

// NewPipeline wires the three steps. uploader and notifier may be nil;
// recorder is the one step that decides success.
func NewPipeline(uploader ObjectUploader, recorder Recorder, notifier Notifier, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		uploader: uploader,
		recorder: recorder,
		notifier: notifier,
		log:      log,
	}
}

// Submit runs the pipeline. A failed image upload downgrades the report
// to image-less instead of aborting; a failed email is logged and
// surfaced via EmailSent. Only a failed database insert fails the
// submission.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (*Result, error) {
	if strings.TrimSpace(sub.Category) == "" {
		return nil, fmt.Errorf("%w: issue category is required", ErrSubmission)
	}
	if sub.Source == "" {
		sub.Source = parking.ReportSourceOriginal
	}

	var imageURL string
	attached := false
	if len(sub.Image) > 0 && p.uploader != nil {
		key := storage.ReportKey()
		url, err := p.uploader.Upload(ctx, key, sub.Image)
		if err != nil {
			// A report without its image is still valuable.
			p.log.Warn().Err(err).Str("key", key).Msg("report image upload failed, continuing without image")
		} else {
			imageURL = url
			attached = true
		}
	}

	if p.recorder == nil {
		return nil, fmt.Errorf("%w: cloud report table is not configured", ErrSubmission)
	}

	rec := &repository.ReportRecord{
		UserEmail:     sub.Profile.Email,
		IssueCategory: sub.Category,
		Description:   sub.Description,
		ReportedAt:    time.Now(),
		ImageAttached: attached,
		Source:        sub.Source,
	}
	if imageURL != "" {
		rec.ImageURL = &imageURL
	}
	if sub.Result != nil {
		rec.AISummary = sub.Result.Summary
		rec.AIExplanation = sub.Result.Explanation
		if rules, err := json.Marshal(sub.Result.Rules); err == nil {
			rec.Rules = datatypes.JSON(rules)
		}
	}
	if err := p.recorder.CreateReport(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	emailSent := false
	if p.notifier != nil {
		mailCtx, cancel := context.WithTimeout(ctx, emailTimeout)
		err := p.notifier.Notify(mailCtx,
			fmt.Sprintf("Parking sign report: %s", sub.Category),
			sub.Profile.Email,
			buildDigest(sub, imageURL))
		cancel()
		if err != nil {
			// The report row is the durable artifact; the email is a
			// notification convenience.
			p.log.Warn().Err(err).Msg("report email notification failed")
		} else {
			emailSent = true
		}
	}

	p.log.Info().
		Str("category", sub.Category).
		Bool("image_attached", attached).
		Bool("email_sent", emailSent).
		Msg("report submitted")
	return &Result{Success: true, ImageURL: imageURL, EmailSent: emailSent}, nil
}

func buildDigest(sub Submission, imageURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New parking sign report\n\n")
	fmt.Fprintf(&b, "From: %s <%s>\n", sub.Profile.FullName, sub.Profile.Email)
	fmt.Fprintf(&b, "Category: %s\n", sub.Category)
	fmt.Fprintf(&b, "Source: %s\n\n", sub.Source)
	fmt.Fprintf(&b, "Description:\n%s\n", sub.Description)
	if sub.Result != nil {
		fmt.Fprintf(&b, "\nDisputed verdict:\n%s\n%s\n", sub.Result.Summary, sub.Result.Explanation)
	}
	if imageURL != "" {
		fmt.Fprintf(&b, "\nImage: %s\n", imageURL)
	} else {
		b.WriteString("\nNo image attached.\n")
	}
	return b.String()
}
