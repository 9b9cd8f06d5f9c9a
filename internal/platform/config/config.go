package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Report   ReportConfig   `mapstructure:"report"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Backfill BackfillConfig `mapstructure:"backfill"`
	Export   ExportConfig   `mapstructure:"export"`
	Run      RunConfig      `mapstructure:"run"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type ReportConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type SheetsConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	Link            string `mapstructure:"link"`
}

type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	FromAddress string `mapstructure:"from_address"`
	Recipient   string `mapstructure:"recipient"`
}

type AlertConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

type BackfillConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

type RunConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type AuditConfig struct {
	Path string `mapstructure:"path"`
}

type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
}

// envBindings maps config keys to the environment variables that may supply
// them. The lower-case and bare names are the ones the deployed crontab
// already exports.
var envBindings = map[string][]string{
	"mongo.uri":               {"MONGO_URI", "botit_mongo_connection_string"},
	"mongo.database":          {"MONGO_DATABASE"},
	"mongo.collection":        {"MONGO_COLLECTION"},
	"report.timezone":         {"REPORT_TIMEZONE"},
	"sheets.credentials_file": {"SHEETS_CREDENTIALS_FILE", "SERVICE_ACCOUNT"},
	"sheets.spreadsheet_id":   {"SHEETS_SPREADSHEET_ID", "SHEET_ID"},
	"sheets.link":             {"SHEETS_LINK", "SHEET_LINK"},
	"smtp.host":               {"SMTP_HOST", "SMTP_SERVER"},
	"smtp.port":               {"SMTP_PORT"},
	"smtp.username":           {"SMTP_USERNAME", "EMAIL_USER"},
	"smtp.password":           {"SMTP_PASSWORD", "EMAIL_PASSWORD"},
	"smtp.from_address":       {"SMTP_FROM_ADDRESS"},
	"smtp.recipient":          {"SMTP_RECIPIENT", "RECIPIENT_EMAIL"},
	"alert.threshold":         {"ALERT_THRESHOLD"},
	"backfill.start":          {"BACKFILL_START"},
	"backfill.end":            {"BACKFILL_END"},
	"export.dir":              {"EXPORT_DIR"},
	"run.timeout":             {"RUN_TIMEOUT"},
	"logging.level":           {"LOGGING_LEVEL"},
	"logging.format":          {"LOGGING_FORMAT"},
	"logging.output":          {"LOGGING_OUTPUT"},
	"logging.file_path":       {"LOGGING_FILE_PATH"},
	"audit.path":              {"AUDIT_PATH"},
	"metrics.pushgateway_url": {"METRICS_PUSHGATEWAY_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mongo.database", "botitprod")
	v.SetDefault("mongo.collection", "UserOTPs")
	v.SetDefault("report.timezone", "UTC")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("alert.threshold", 5.0)
	v.SetDefault("backfill.start", "2025-03-01")
	v.SetDefault("backfill.end", "2025-04-06")
	v.SetDefault("export.dir", ".")
	v.SetDefault("run.timeout", 5*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load reads .env, the optional YAML file at path and the environment, in
// increasing order of precedence. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if config.SMTP.FromAddress == "" {
		config.SMTP.FromAddress = config.SMTP.Username
	}

	return &config, nil
}

// Location resolves the report time zone, the zone in which calendar days
// are cut.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Report.Timezone)
}
