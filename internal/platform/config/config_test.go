package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("missing.yaml")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Mongo.Database != "botitprod" {
		t.Errorf("Expected database botitprod, got %s", cfg.Mongo.Database)
	}
	if cfg.Mongo.Collection != "UserOTPs" {
		t.Errorf("Expected collection UserOTPs, got %s", cfg.Mongo.Collection)
	}
	if cfg.Alert.Threshold != 5 {
		t.Errorf("Expected threshold 5, got %v", cfg.Alert.Threshold)
	}
	if cfg.Run.Timeout != 5*time.Minute {
		t.Errorf("Expected timeout 5m, got %v", cfg.Run.Timeout)
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("Expected smtp port 587, got %d", cfg.SMTP.Port)
	}
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	chdirTemp(t)

	t.Setenv("botit_mongo_connection_string", "mongodb://db:27017")
	t.Setenv("SERVICE_ACCOUNT", "/secrets/sa.json")
	t.Setenv("SHEET_ID", "sheet-123")
	t.Setenv("SMTP_SERVER", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("EMAIL_USER", "bot@example.com")
	t.Setenv("RECIPIENT_EMAIL", "ops@example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Mongo.URI != "mongodb://db:27017" {
		t.Errorf("Expected mongo uri from legacy env, got %q", cfg.Mongo.URI)
	}
	if cfg.Sheets.CredentialsFile != "/secrets/sa.json" {
		t.Errorf("Expected credentials file, got %q", cfg.Sheets.CredentialsFile)
	}
	if cfg.Sheets.SpreadsheetID != "sheet-123" {
		t.Errorf("Expected spreadsheet id, got %q", cfg.Sheets.SpreadsheetID)
	}
	if cfg.SMTP.Host != "smtp.example.com" || cfg.SMTP.Port != 2525 {
		t.Errorf("Unexpected smtp settings %+v", cfg.SMTP)
	}
	if cfg.SMTP.FromAddress != "bot@example.com" {
		t.Errorf("Expected from address to default to username, got %q", cfg.SMTP.FromAddress)
	}
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "config.yaml")
	content := `
mongo:
  uri: mongodb://file:27017
  collection: OtpEvents
alert:
  threshold: 7.5
report:
  timezone: Africa/Cairo
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MONGO_URI", "mongodb://env:27017")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Mongo.URI != "mongodb://env:27017" {
		t.Errorf("Expected env to override file, got %q", cfg.Mongo.URI)
	}
	if cfg.Mongo.Collection != "OtpEvents" {
		t.Errorf("Expected collection from file, got %q", cfg.Mongo.Collection)
	}
	if cfg.Alert.Threshold != 7.5 {
		t.Errorf("Expected threshold 7.5, got %v", cfg.Alert.Threshold)
	}
	if cfg.Report.Timezone != "Africa/Cairo" {
		t.Errorf("Expected timezone from file, got %q", cfg.Report.Timezone)
	}
}

func validConfig() *Config {
	return &Config{
		Mongo:  MongoConfig{URI: "mongodb://localhost", Database: "botitprod", Collection: "UserOTPs"},
		Report: ReportConfig{Timezone: "UTC"},
		Sheets: SheetsConfig{CredentialsFile: "sa.json", SpreadsheetID: "sheet"},
		SMTP: SMTPConfig{
			Host: "smtp.example.com", Port: 587, Username: "bot@example.com", Password: "secret",
			FromAddress: "bot@example.com", Recipient: "ops@example.com",
		},
		Alert: AlertConfig{Threshold: 5},
		Run:   RunConfig{Timeout: time.Minute},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		needs   Needs
		missing []string
	}{
		{
			name:  "Valid Full",
			needs: NeedMongo | NeedSheets | NeedSMTP,
		},
		{
			name:    "Lists All Missing Fields",
			mutate:  func(c *Config) { c.Mongo.URI = ""; c.Sheets.SpreadsheetID = ""; c.SMTP.Password = "" },
			needs:   NeedMongo | NeedSheets | NeedSMTP,
			missing: []string{"mongo.uri", "sheets.spreadsheet_id", "smtp.password"},
		},
		{
			name:   "Ignores Unneeded Systems",
			mutate: func(c *Config) { c.Sheets = SheetsConfig{}; c.SMTP = SMTPConfig{} },
			needs:  NeedMongo,
		},
		{
			name:    "Bad Timezone",
			mutate:  func(c *Config) { c.Report.Timezone = "Mars/Olympus" },
			needs:   NeedMongo,
			missing: []string{"report.timezone"},
		},
		{
			name:    "Bad Recipient",
			mutate:  func(c *Config) { c.SMTP.Recipient = "ops" },
			needs:   NeedSMTP,
			missing: []string{"smtp.recipient"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.needs)
			if len(tt.missing) == 0 {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error mentioning %v", tt.missing)
			}
			for _, key := range tt.missing {
				if !strings.Contains(err.Error(), key) {
					t.Errorf("Expected error to mention %s, got %v", key, err)
				}
			}
		})
	}
}
