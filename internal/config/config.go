package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Couple struct {
		ID             string            `yaml:"id"`
		Timezone       string            `yaml:"timezone"`
		StartDate      string            `yaml:"startDate"`
		AnniversaryDay int               `yaml:"anniversaryDay"`
		DailyQuestions int               `yaml:"dailyQuestions"`
		RoleA          string            `yaml:"roleA"`
		RoleB          string            `yaml:"roleB"`
		DisplayNames   map[string]string `yaml:"displayNames"`
	} `yaml:"couple"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Bank struct {
		Path string `yaml:"path"`
		TTL  string `yaml:"ttl"`
	} `yaml:"bank"`
}

// Load reads YAML config from path and applies couple defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, cfg.validate()
}

func applyDefaults(cfg *Config) {
	if cfg.Couple.Timezone == "" {
		cfg.Couple.Timezone = "UTC"
	}
	if cfg.Couple.AnniversaryDay == 0 {
		cfg.Couple.AnniversaryDay = 30
	}
	if cfg.Couple.DailyQuestions == 0 {
		cfg.Couple.DailyQuestions = 3
	}
}

func (c Config) validate() error {
	if c.Couple.RoleA == "" || c.Couple.RoleB == "" {
		return fmt.Errorf("couple.roleA and couple.roleB must be set")
	}
	if c.Couple.RoleA == c.Couple.RoleB {
		return fmt.Errorf("couple roles must differ")
	}
	if c.Couple.AnniversaryDay < 1 || c.Couple.AnniversaryDay > 31 {
		return fmt.Errorf("couple.anniversaryDay out of range: %d", c.Couple.AnniversaryDay)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
