package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Publish    PublishConfig    `yaml:"publish"`
	Upload     UploadConfig     `yaml:"upload"`
	Notify     NotifyConfig     `yaml:"notify"`
	Render     RenderConfig     `yaml:"render"`
	Tracking   TrackingConfig   `yaml:"tracking"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Reschedule []RescheduleItem `yaml:"reschedule" validate:"dive"`
}

type PathsConfig struct {
	Schedule    string `yaml:"schedule" validate:"required"`
	MetadataDir string `yaml:"metadata_dir" validate:"required"`
	OutputDir   string `yaml:"output_dir" validate:"required"`
	Tracking    string `yaml:"tracking" validate:"required"`
	TokenFile   string `yaml:"token_file" validate:"required"`
	Reports     string `yaml:"reports"`
}

type PublishConfig struct {
	Delay         time.Duration       `yaml:"delay" validate:"gte=0"`
	Timezone      string              `yaml:"timezone"`
	Exclude       map[string][]string `yaml:"exclude"`
	VideoReport   string              `yaml:"video_report" validate:"required"`
	ShortReport   string              `yaml:"short_report" validate:"required"`
	RescheduleLog string              `yaml:"reschedule_report" validate:"required"`
}

type UploadConfig struct {
	NotifySubscribers bool    `yaml:"notify_subscribers"`
	MadeForKids       bool    `yaml:"made_for_kids"`
	DefaultLanguage   string  `yaml:"default_language"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

type NotifyConfig struct {
	Transport string        `yaml:"transport" validate:"oneof=resend smtp log"`
	From      string        `yaml:"from" validate:"required"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
	ResendURL string        `yaml:"resend_url" validate:"required,url"`
	SMTPHost  string        `yaml:"smtp_host"`
	SMTPPort  int           `yaml:"smtp_port"`
}

type RenderConfig struct {
	Command      string            `yaml:"command" validate:"required"`
	Args         []string          `yaml:"args"`
	EntryPoint   string            `yaml:"entry_point" validate:"required"`
	Compositions map[string]string `yaml:"compositions"`
	Duration     string            `yaml:"thumbnail_duration"`
}

type TrackingConfig struct {
	Driver string `yaml:"driver" validate:"oneof=json postgres"`
}

type SchedulerConfig struct {
	Cron string `yaml:"cron" validate:"required"`
}

type ServerConfig struct {
	Address string `yaml:"address" validate:"required"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// RescheduleItem is an already-uploaded video whose visibility should follow its metadata
type RescheduleItem struct {
	VideoID string `yaml:"video_id" validate:"required"`
	Slug    string `yaml:"slug" validate:"required"`
	Type    string `yaml:"type" validate:"oneof=video short"`
}

// Secrets holds credentials read from the environment (.env in local dev)
type Secrets struct {
	YouTubeClientID     string `env:"YOUTUBE_CLIENT_ID"`
	YouTubeClientSecret string `env:"YOUTUBE_CLIENT_SECRET"`
	YouTubeRedirectURI  string `env:"YOUTUBE_REDIRECT_URI" envDefault:"http://localhost:3000"`
	YouTubeRefreshToken string `env:"YOUTUBE_REFRESH_TOKEN"`
	ResendAPIKey        string `env:"RESEND_API_KEY"`
	NotificationEmail   string `env:"NOTIFICATION_EMAIL" envDefault:"john@pravos.xyz"`
	SMTPUsername        string `env:"SMTP_USERNAME"`
	SMTPPassword        string `env:"SMTP_PASSWORD"`
	DatabaseURL         string `env:"DATABASE_URL"`
	RedisAddr           string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
}

// Default returns the configuration used when config.yaml leaves a field empty
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Schedule:    "schedule.yaml",
			MetadataDir: "youtube-metadata",
			OutputDir:   "out",
			Tracking:    "published-tracking.json",
			TokenFile:   ".youtube-tokens.json",
			Reports:     ".",
		},
		Publish: PublishConfig{
			Delay:         5 * time.Second,
			Exclude:       map[string][]string{"video": {"cognitive-bloom"}},
			VideoReport:   "published-videos.json",
			ShortReport:   "published-shorts.json",
			RescheduleLog: "rescheduled-videos.json",
		},
		Upload: UploadConfig{
			DefaultLanguage:   "en",
			RequestsPerSecond: 1,
		},
		Notify: NotifyConfig{
			Transport: "resend",
			From:      "Pravos Automation <noreply@pravos.xyz>",
			Timeout:   15 * time.Second,
			ResendURL: "https://api.resend.com/emails",
			SMTPPort:  587,
		},
		Render: RenderConfig{
			Command:    "npx",
			Args:       []string{"remotion"},
			EntryPoint: "src/index.tsx",
			Compositions: map[string]string{
				"video":     "BreathingBloom",
				"short":     "BreathingBloomShort",
				"story":     "BreathingBloomStory",
				"thumbnail": "Thumbnail",
			},
			Duration: "25 MIN",
		},
		Tracking:  TrackingConfig{Driver: "json"},
		Scheduler: SchedulerConfig{Cron: "0 9 * * *"},
		Server:    ServerConfig{Address: ":8080"},
		Log:       LogConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 3},
	}
}

// Load reads config.yaml over the defaults and validates the result.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Publish.Timezone, err)
	}
	return nil
}

// Location resolves the publishing timezone; empty means the process local zone
func (c *Config) Location() (*time.Location, error) {
	if c.Publish.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Publish.Timezone)
}

// Excluded returns the slugs never picked up by a manual batch of the given type
func (c *Config) Excluded(contentType string) map[string]bool {
	set := make(map[string]bool)
	for _, slug := range c.Publish.Exclude[contentType] {
		set[slug] = true
	}
	return set
}

// LoadSecrets reads .env (local dev only, CI uses real env) and parses credentials
func LoadSecrets(files ...string) (*Secrets, error) {
	_ = godotenv.Load(files...)

	var s Secrets
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &s, nil
}
