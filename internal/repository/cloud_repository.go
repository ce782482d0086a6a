package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"parksign-service/internal/domain/parking"
)

// CloudRepository persists report records and mirrors permit profiles in
// the cloud database. The cloud profile row is a best-effort copy of
// local state, not a source of truth.
type CloudRepository struct {
	db *gorm.DB
}

func NewCloudRepository(db *gorm.DB) *CloudRepository {
	return &CloudRepository{db: db}
}

type ReportRecord struct {
	ID            int64     `gorm:"primaryKey"`
	UserEmail     string    `gorm:"not null;index"`
	IssueCategory string    `gorm:"not null"`
	Description   string    `gorm:"not null"`
	AISummary     string
	AIExplanation string
	ReportedAt    time.Time `gorm:"not null"`
	ImageAttached bool
	ImageURL      *string
	Source        string         `gorm:"not null"`
	Rules         datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time
}

func (ReportRecord) TableName() string { return "parking_reports" }

type ProfileRecord struct {
	ID                  int64     `gorm:"primaryKey"`
	Email               string    `gorm:"not null;uniqueIndex"`
	FullName            string
	VehicleNumber       string
	HasDisabilityPermit bool
	HasResidentPermit   bool
	HasLoadingPermit    bool
	HasBusinessPermit   bool
	HasAuthorizedPermit bool
	HasTaxiPermit       bool
	ResidentArea        *string
	LastSynced          time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (ProfileRecord) TableName() string { return "parking_profiles" }

func (r *CloudRepository) CreateReport(ctx context.Context, rec *ReportRecord) error {
	rec.CreatedAt = time.Now()
	return r.db.WithContext(ctx).Create(rec).Error
}

// UpsertProfile replaces the cloud copy of the profile, keyed by email.
func (r *CloudRepository) UpsertProfile(ctx context.Context, p parking.Profile) error {
	rec := ProfileRecord{}
	err := r.db.WithContext(ctx).Where("email = ?", p.Email).First(&rec).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}

	rec.Email = p.Email
	rec.FullName = p.FullName
	rec.VehicleNumber = p.VehicleNumber
	rec.HasDisabilityPermit = p.HasDisabilityPermit
	rec.HasResidentPermit = p.HasResidentPermit
	rec.HasLoadingPermit = p.HasLoadingPermit
	rec.HasBusinessPermit = p.HasBusinessPermit
	rec.HasAuthorizedPermit = p.HasAuthorizedPermit
	rec.HasTaxiPermit = p.HasTaxiPermit
	rec.ResidentArea = nil
	if p.ResidentArea != "" {
		area := p.ResidentArea
		rec.ResidentArea = &area
	}
	rec.LastSynced = time.Now()

	if rec.ID == 0 {
		rec.CreatedAt = time.Now()
		return r.db.WithContext(ctx).Create(&rec).Error
	}
	return r.db.WithContext(ctx).Save(&rec).Error
}

// DeleteUserData implements "delete my cloud data": reports first, then
// the profile row.
func (r *CloudRepository) DeleteUserData(ctx context.Context, email string) error {
	if err := r.db.WithContext(ctx).Where("user_email = ?", email).Delete(&ReportRecord{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("email = ?", email).Delete(&ProfileRecord{}).Error
}
