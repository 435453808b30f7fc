// Package config loads the pipeline settings from config/pipeline.yaml and the
// environment (.env is honoured through godotenv).
package config

import (
	"fmt"
	"os"
	"strings"

	"filing_valuation/pkg/core/calc"
	"filing_valuation/pkg/models"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// DefaultPath is where the binaries look for the settings file.
const DefaultPath = "config/pipeline.yaml"

// DefaultKeywordPriority is used for keywords configured without a priority;
// they are tried after every prioritised one.
const DefaultKeywordPriority = 99

// Config is the whole settings file.
type Config struct {
	Database       DatabaseConfig                      `yaml:"database" json:"database"`
	Paths          PathsConfig                         `yaml:"paths" json:"paths"`
	TargetDocTypes []string                            `yaml:"target_document_types" json:"target_document_types"`
	Keywords       map[string][]models.ScrapingKeyword `yaml:"keywords" json:"keywords"`
	Valuation      ValuationConfig                     `yaml:"valuation" json:"valuation"`
	Schedule       ScheduleConfig                      `yaml:"schedule" json:"schedule"`
	Server         ServerConfig                        `yaml:"server" json:"server"`
	Log            LogConfig                           `yaml:"log" json:"log"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"-"`
}

type PathsConfig struct {
	DecodeRoot     string `yaml:"decode_root" json:"decode_root"`
	DocumentSubdir string `yaml:"document_subdir" json:"document_subdir"`
	BodyFileMarker string `yaml:"body_file_marker" json:"body_file_marker"`
	SubjectSeed    string `yaml:"subject_seed" json:"subject_seed"`
}

// ValuationConfig holds the formula constants as decimal strings.
type ValuationConfig struct {
	BusinessValueWeight string `yaml:"business_value_weight" json:"business_value_weight"`
	CurrentRatioFactor  string `yaml:"current_ratio_factor" json:"current_ratio_factor"`
}

type ScheduleConfig struct {
	Cron         string `yaml:"cron" json:"cron"`
	LookbackDays int    `yaml:"lookback_days" json:"lookback_days"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

// Default returns the settings used when the file leaves a field empty.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/pipeline.db"},
		Paths: PathsConfig{
			DecodeRoot:     "data/decode",
			DocumentSubdir: "XBRL/PublicDoc",
			BodyFileMarker: "honbun",
			SubjectSeed:    "config/subjects.hjson",
		},
		TargetDocTypes: []string{"120", "130", "140", "150"},
		Valuation:      ValuationConfig{BusinessValueWeight: "10", CurrentRatioFactor: "1.2"},
		Schedule:       ScheduleConfig{Cron: "30 20 * * *", LookbackDays: 1},
		Server:         ServerConfig{Addr: ":8080"},
		Log:            LogConfig{Level: "info"},
	}
}

// Load reads .env (if present), the yaml file at path and the environment
// overrides, then validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := Parse(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes yaml over cfg, keeping fields the data does not set.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set("DATABASE_URL", &c.Database.DSN)
	set("DB_DRIVER", &c.Database.Driver)
	set("DECODE_ROOT", &c.Paths.DecodeRoot)
	set("LOG_LEVEL", &c.Log.Level)
	set("HTTP_ADDR", &c.Server.Addr)
}

// Validate checks the settings that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	if c.Paths.DecodeRoot == "" {
		return fmt.Errorf("paths.decode_root is required")
	}
	if _, err := c.KeywordsByKind(); err != nil {
		return err
	}
	if _, err := c.ValuationParams(); err != nil {
		return err
	}
	for _, code := range c.TargetDocTypes {
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("target_document_types: empty code")
		}
	}
	return nil
}

// KeywordsByKind converts the keyword table, keyed by kind name in the file,
// into per-kind keyword lists with defaults applied.
func (c Config) KeywordsByKind() (map[models.StatementKind][]models.ScrapingKeyword, error) {
	out := make(map[models.StatementKind][]models.ScrapingKeyword, len(c.Keywords))
	for name, list := range c.Keywords {
		kind, err := models.ParseStatementKind(name)
		if err != nil {
			return nil, fmt.Errorf("keywords: %w", err)
		}
		for _, kw := range list {
			if strings.TrimSpace(kw.Keyword) == "" {
				return nil, fmt.Errorf("keywords.%s: empty keyword", name)
			}
			kw.Kind = kind
			if kw.Priority == 0 {
				kw.Priority = DefaultKeywordPriority
			}
			out[kind] = append(out[kind], kw)
		}
	}
	return out, nil
}

// DocumentTypes returns the target document type codes.
func (c Config) DocumentTypes() []models.DocumentTypeCode {
	out := make([]models.DocumentTypeCode, 0, len(c.TargetDocTypes))
	for _, code := range c.TargetDocTypes {
		out = append(out, models.DocumentTypeCode(strings.TrimSpace(code)))
	}
	return out
}

// ValuationParams parses the formula constants.
func (c Config) ValuationParams() (calc.Params, error) {
	p := calc.DefaultParams()
	if s := c.Valuation.BusinessValueWeight; s != "" {
		w, err := decimal.NewFromString(s)
		if err != nil {
			return calc.Params{}, fmt.Errorf("valuation.business_value_weight: %w", err)
		}
		p.BusinessValueWeight = w
	}
	if s := c.Valuation.CurrentRatioFactor; s != "" {
		r, err := decimal.NewFromString(s)
		if err != nil {
			return calc.Params{}, fmt.Errorf("valuation.current_ratio_factor: %w", err)
		}
		p.CurrentRatioFactor = r
	}
	return p, nil
}
