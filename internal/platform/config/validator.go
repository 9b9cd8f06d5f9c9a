package config

import (
	"fmt"
	"strings"
	"time"

	"otpreport/internal/pkg/validator"
)

// Needs names the external systems a job talks to. Validate only demands the
// settings of the systems a job actually uses.
type Needs uint8

const (
	NeedMongo Needs = 1 << iota
	NeedSheets
	NeedSMTP
)

// Validate checks every required field for needs and reports all problems in
// one error rather than stopping at the first.
func (c *Config) Validate(needs Needs) error {
	var errs []string
	require := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Sprintf("%s is required", key))
		}
	}

	// The zone name is sent to the database, which has no notion of "Local".
	if c.Report.Timezone == "Local" {
		errs = append(errs, `report.timezone must name an IANA zone, not "Local"`)
	} else if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("report.timezone %q: %v", c.Report.Timezone, err))
	}
	if c.Run.Timeout <= 0 {
		errs = append(errs, "run.timeout must be positive")
	}

	if needs&NeedMongo != 0 {
		require(c.Mongo.URI, "mongo.uri")
		require(c.Mongo.Database, "mongo.database")
		require(c.Mongo.Collection, "mongo.collection")
	}

	if needs&NeedSheets != 0 {
		require(c.Sheets.CredentialsFile, "sheets.credentials_file")
		require(c.Sheets.SpreadsheetID, "sheets.spreadsheet_id")
	}

	if needs&NeedSMTP != 0 {
		require(c.SMTP.Host, "smtp.host")
		require(c.SMTP.Username, "smtp.username")
		require(c.SMTP.Password, "smtp.password")
		require(c.SMTP.Recipient, "smtp.recipient")
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			errs = append(errs, fmt.Sprintf("smtp.port %d out of range", c.SMTP.Port))
		}
		if c.SMTP.Recipient != "" {
			if err := validator.Address(c.SMTP.Recipient); err != nil {
				errs = append(errs, fmt.Sprintf("smtp.recipient: %v", err))
			}
		}
		if c.SMTP.FromAddress != "" {
			if err := validator.Address(c.SMTP.FromAddress); err != nil {
				errs = append(errs, fmt.Sprintf("smtp.from_address: %v", err))
			}
		}
		if c.Alert.Threshold < 0 {
			errs = append(errs, "alert.threshold must not be negative")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
