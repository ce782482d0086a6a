package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS parking_reports (
		id              BIGSERIAL PRIMARY KEY,
		user_email      TEXT NOT NULL,
		issue_category  TEXT NOT NULL,
		description     TEXT NOT NULL,
		ai_summary      TEXT,
		ai_explanation  TEXT,
		reported_at     TIMESTAMPTZ NOT NULL,
		image_attached  BOOLEAN NOT NULL DEFAULT FALSE,
		image_url       TEXT,
		source          TEXT NOT NULL,
		rules           JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_parking_reports_user_email ON parking_reports(user_email);`,
	`CREATE INDEX IF NOT EXISTS idx_parking_reports_reported_at ON parking_reports(reported_at);`,
	`CREATE TABLE IF NOT EXISTS parking_profiles (
		id                    BIGSERIAL PRIMARY KEY,
		email                 TEXT NOT NULL,
		full_name             TEXT,
		vehicle_number        TEXT,
		has_disability_permit BOOLEAN NOT NULL DEFAULT FALSE,
		has_resident_permit   BOOLEAN NOT NULL DEFAULT FALSE,
		has_loading_permit    BOOLEAN NOT NULL DEFAULT FALSE,
		has_business_permit   BOOLEAN NOT NULL DEFAULT FALSE,
		has_authorized_permit BOOLEAN NOT NULL DEFAULT FALSE,
		has_taxi_permit       BOOLEAN NOT NULL DEFAULT FALSE,
		resident_area         TEXT,
		last_synced           TIMESTAMPTZ,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_parking_profiles_email ON parking_profiles(email);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
