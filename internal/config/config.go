package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "Europe/London"
	notionTokenEnv  = "NOTION_API_KEY"
	slackWebhookEnv = "SLACK_WEBHOOK_URL"
	gcpProjectEnv   = "GOOGLE_CLOUD_PROJECT"
)

// Config holds every tunable of a detection run. It is loaded once at
// startup and treated as immutable afterwards.
type Config struct {
	Input     InputConfig     `yaml:"input"`
	Detection DetectionConfig `yaml:"detection"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Report    ReportConfig    `yaml:"report"`
	BigQuery  BigQueryConfig  `yaml:"bigquery"`
	GCS       GCSConfig       `yaml:"gcs"`
	Notion    NotionConfig    `yaml:"notion"`
	Slack     SlackConfig     `yaml:"slack"`
	Worker    WorkerConfig    `yaml:"worker"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// InputConfig locates the transaction batch.
type InputConfig struct {
	CSVPath string `yaml:"csvPath"`
}

// DetectionConfig carries the rule thresholds.
type DetectionConfig struct {
	DuplicateWindowDays    int     `yaml:"duplicateWindowDays"`
	PriceVarianceThreshold float64 `yaml:"priceVarianceThreshold"`
	SLAGraceDays           int     `yaml:"slaGraceDays"`
	VolumeSpikeSigma       float64 `yaml:"volumeSpikeSigma"`
	VolumeRollingWindow    int     `yaml:"volumeRollingWindow"`
}

// ScoringConfig carries severity scoring parameters.
type ScoringConfig struct {
	RuleBaseScores       map[string]float64 `yaml:"ruleBaseScores"`
	FinancialLow         float64            `yaml:"financialLow"`
	FinancialMedium      float64            `yaml:"financialMedium"`
	FinancialHigh        float64            `yaml:"financialHigh"`
	CriticalThreshold    float64            `yaml:"criticalThreshold"`
	HighThreshold        float64            `yaml:"highThreshold"`
	MediumThreshold      float64            `yaml:"mediumThreshold"`
	UnknownRuleBaseScore float64            `yaml:"unknownRuleBaseScore"`
}

// ReportConfig controls where run artifacts are written.
type ReportConfig struct {
	OutputDir string `yaml:"outputDir"`
}

// BigQueryConfig describes the optional BI export.
type BigQueryConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ProjectID  string `yaml:"projectId"`
	Dataset    string `yaml:"dataset"`
	FlagsTable string `yaml:"flagsTable"`
	RunsTable  string `yaml:"runsTable"`
}

// GCSConfig describes the optional artifact upload.
type GCSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
}

// NotionConfig describes the optional dashboard sync.
type NotionConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"databaseId"`
	DryRun     bool   `yaml:"dryRun"`
}

// SlackConfig describes the optional critical-finding alert.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhookUrl"`
}

// WorkerConfig tunes the scheduled daemon and its retry policy.
type WorkerConfig struct {
	RunAt      string `yaml:"runAt"` // "HH:MM" local time
	Timezone   string `yaml:"timezone"`
	Workers    int    `yaml:"workers"`
	MaxRetries int    `yaml:"maxRetries"`

	location *time.Location
}

// Location resolves the worker timezone, falling back to Europe/London.
func (w WorkerConfig) Location() *time.Location {
	if w.location != nil {
		return w.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// APIConfig holds the HTTP server address.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig sets the minimum log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration from path (when non-empty) on top of the
// defaults, then applies environment overrides for secrets and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(notionTokenEnv); v != "" {
		c.Notion.Token = v
	}
	if v := os.Getenv(slackWebhookEnv); v != "" {
		c.Slack.WebhookURL = v
	}
	if v := os.Getenv(gcpProjectEnv); v != "" && c.BigQuery.ProjectID == "" {
		c.BigQuery.ProjectID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Worker.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Worker.location = loc
}

// Validate rejects configurations that cannot produce a meaningful run.
// It runs before any rule touches the data so a bad config fails fast.
func (c Config) Validate() error {
	if c.Detection.DuplicateWindowDays < 0 {
		return fmt.Errorf("config: duplicateWindowDays must be >= 0, got %d", c.Detection.DuplicateWindowDays)
	}
	if c.Detection.PriceVarianceThreshold <= 0 {
		return fmt.Errorf("config: priceVarianceThreshold must be > 0, got %g", c.Detection.PriceVarianceThreshold)
	}
	if c.Detection.SLAGraceDays < 0 {
		return fmt.Errorf("config: slaGraceDays must be >= 0, got %d", c.Detection.SLAGraceDays)
	}
	if c.Detection.VolumeSpikeSigma <= 0 {
		return fmt.Errorf("config: volumeSpikeSigma must be > 0, got %g", c.Detection.VolumeSpikeSigma)
	}
	if c.Detection.VolumeRollingWindow < 1 {
		return fmt.Errorf("config: volumeRollingWindow must be >= 1, got %d", c.Detection.VolumeRollingWindow)
	}
	if !(c.Scoring.FinancialLow < c.Scoring.FinancialMedium && c.Scoring.FinancialMedium < c.Scoring.FinancialHigh) {
		return fmt.Errorf("config: financial bands must be strictly increasing, got %g/%g/%g",
			c.Scoring.FinancialLow, c.Scoring.FinancialMedium, c.Scoring.FinancialHigh)
	}
	if !(c.Scoring.MediumThreshold < c.Scoring.HighThreshold && c.Scoring.HighThreshold < c.Scoring.CriticalThreshold) {
		return fmt.Errorf("config: severity thresholds must be strictly increasing, got %g/%g/%g",
			c.Scoring.MediumThreshold, c.Scoring.HighThreshold, c.Scoring.CriticalThreshold)
	}
	if c.Report.OutputDir == "" {
		return fmt.Errorf("config: report.outputDir is required")
	}
	if c.BigQuery.Enabled {
		if c.BigQuery.ProjectID == "" || c.BigQuery.Dataset == "" {
			return fmt.Errorf("config: bigquery export enabled but projectId/dataset missing")
		}
	}
	if c.GCS.Enabled && c.GCS.Bucket == "" {
		return fmt.Errorf("config: gcs upload enabled but bucket missing")
	}
	if c.Notion.Enabled {
		if c.Notion.Token == "" {
			return fmt.Errorf("config: notion sync enabled but token missing (set %s)", notionTokenEnv)
		}
		if c.Notion.DatabaseID == "" {
			return fmt.Errorf("config: notion sync enabled but databaseId missing")
		}
	}
	if c.Slack.Enabled && c.Slack.WebhookURL == "" {
		return fmt.Errorf("config: slack alerts enabled but webhook missing (set %s)", slackWebhookEnv)
	}
	if c.Worker.Workers < 1 {
		return fmt.Errorf("config: worker.workers must be >= 1, got %d", c.Worker.Workers)
	}
	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("config: worker.maxRetries must be >= 0, got %d", c.Worker.MaxRetries)
	}
	if _, err := time.Parse("15:04", c.Worker.RunAt); err != nil {
		return fmt.Errorf("config: worker.runAt must be HH:MM, got %q", c.Worker.RunAt)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	loc, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Input: InputConfig{CSVPath: "data/procurement_transactions.csv"},
		Detection: DetectionConfig{
			DuplicateWindowDays:    1,
			PriceVarianceThreshold: 1.15,
			SLAGraceDays:           0,
			VolumeSpikeSigma:       2.0,
			VolumeRollingWindow:    14,
		},
		Scoring: ScoringConfig{
			RuleBaseScores: map[string]float64{
				"duplicate":      50,
				"price_variance": 45,
				"sla_breach":     40,
				"volume_spike":   35,
			},
			FinancialLow:         500,
			FinancialMedium:      2000,
			FinancialHigh:        10000,
			CriticalThreshold:    80,
			HighThreshold:        60,
			MediumThreshold:      35,
			UnknownRuleBaseScore: 30,
		},
		Report: ReportConfig{OutputDir: "output"},
		BigQuery: BigQueryConfig{
			Enabled:    false,
			Dataset:    "procurement",
			FlagsTable: "scored_flags",
			RunsTable:  "detection_runs",
		},
		GCS:    GCSConfig{Enabled: false, Prefix: "leakage-reports"},
		Notion: NotionConfig{Enabled: false},
		Slack:  SlackConfig{Enabled: false},
		Worker: WorkerConfig{
			RunAt:      "06:00",
			Timezone:   defaultTimezone,
			Workers:    2,
			MaxRetries: 3,
			location:   loc,
		},
		API:     APIConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info"},
	}
}
