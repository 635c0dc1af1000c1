// backend/database/schema.go
package database

import (
	"fmt"
	"log"
)

// Mirror schema. Observations carry a composite primary key so upserts are
// idempotent by construction; api_usage is append-only and never mutated
// after insert.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS series (
		series_id       VARCHAR(64)  NOT NULL,
		survey_code     VARCHAR(8)   NOT NULL,
		title           VARCHAR(512) NOT NULL DEFAULT '',
		dimension_codes VARCHAR(512) NOT NULL DEFAULT '',
		begin_year      INT          NOT NULL DEFAULT 0,
		begin_period    VARCHAR(8)   NOT NULL DEFAULT '',
		end_year        INT          NOT NULL DEFAULT 0,
		end_period      VARCHAR(8)   NOT NULL DEFAULT '',
		is_active       TINYINT(1)   NOT NULL DEFAULT 1,
		created_at      TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (series_id),
		KEY idx_series_survey_active (survey_code, is_active)
	)`,

	`CREATE TABLE IF NOT EXISTS observations (
		series_id      VARCHAR(64) NOT NULL,
		year           INT         NOT NULL,
		period         VARCHAR(8)  NOT NULL,
		value          DECIMAL(20,6) NULL,
		footnote_codes VARCHAR(64) NOT NULL DEFAULT '',
		updated_at     TIMESTAMP   NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (series_id, year, period)
	)`,

	`CREATE TABLE IF NOT EXISTS series_update_status (
		series_id       VARCHAR(64) NOT NULL,
		survey_code     VARCHAR(8)  NOT NULL,
		last_checked_at TIMESTAMP   NULL,
		last_updated_at TIMESTAMP   NULL,
		is_current      TINYINT(1)  NOT NULL DEFAULT 0,
		PRIMARY KEY (series_id),
		KEY idx_status_survey_current (survey_code, is_current)
	)`,

	`CREATE TABLE IF NOT EXISTS api_usage (
		id            BIGINT      NOT NULL AUTO_INCREMENT,
		usage_date    DATE        NOT NULL,
		requests_used INT         NOT NULL,
		series_count  INT         NOT NULL,
		survey_code   VARCHAR(8)  NOT NULL DEFAULT '',
		script_name   VARCHAR(64) NOT NULL DEFAULT '',
		created_at    TIMESTAMP   NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_usage_date (usage_date)
	)`,

	`CREATE TABLE IF NOT EXISTS survey_update_cycles (
		survey_code    VARCHAR(8)  NOT NULL,
		in_progress    TINYINT(1)  NOT NULL DEFAULT 0,
		started_at     TIMESTAMP   NULL,
		completed_at   TIMESTAMP   NULL,
		total_series   INT         NOT NULL DEFAULT 0,
		updated_series INT         NOT NULL DEFAULT 0,
		needs_update   TINYINT(1)  NOT NULL DEFAULT 0,
		updated_at     TIMESTAMP   NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (survey_code)
	)`,
}

// EnsureSchema creates the mirror tables if they do not exist yet.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	for _, stmt := range schemaStatements {
		if _, err := DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	log.Println("Database: schema ensured.")
	return nil
}
