// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable pointing at the YAML config file.
const FileEnv = "TICKETPAIRS_CONFIG"

type Config struct {
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	DatabaseURL string `yaml:"database_url"`
	NatsURL     string `yaml:"nats_url"`
	NatsToken   string `yaml:"nats_token"`
	APIToken    string `yaml:"api_token"`

	RTURL      string `yaml:"rt_url"`
	RTUser     string `yaml:"rt_user"`
	RTPassword string `yaml:"rt_password"`
	Queue      string `yaml:"queue"`
	FromDate   string `yaml:"from_date"`
	ToDate     string `yaml:"to_date"`
	WindowDays int    `yaml:"window_days"`

	OutputDir    string  `yaml:"output_dir"`
	OutputPrefix string  `yaml:"output_prefix"`
	TrainRatio   float64 `yaml:"train_ratio"`
	Seed         int64   `yaml:"seed"`
	Workers      int     `yaml:"workers"`
	StatePath    string  `yaml:"state_path"`

	SlackBotToken string `yaml:"slack_bot_token"`
	SlackChannel  string `yaml:"slack_channel"`

	MergeTurns  bool     `yaml:"merge_turns"`
	Queues      []string `yaml:"queues"`
	SystemActor string   `yaml:"system_actor"`
	BotActor    string   `yaml:"bot_actor"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:         8760,
		LogLevel:     "info",
		NatsURL:      "nats://hermes:4222",
		Queue:        "DesignSafe-ci",
		FromDate:     "2015-07-01",
		ToDate:       "2024-10-01",
		WindowDays:   90,
		OutputDir:    "data",
		OutputPrefix: "24ds",
		TrainRatio:   0.9,
		Seed:         42,
		Workers:      4,
		StatePath:    "~/.ticketpairs/state.json",
		SystemActor:  "rtprod",
		BotActor:     "rtbot",
	}
}

// Load builds the configuration. The file named by TICKETPAIRS_CONFIG, when
// set, overrides the defaults; environment variables override both.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv(FileEnv); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envInt("TICKETPAIRS_PORT", cfg.Port)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseURL = envStr("DATABASE_URL", cfg.DatabaseURL)
	cfg.NatsURL = envStr("NATS_URL", cfg.NatsURL)
	cfg.NatsToken = envStr("NATS_TOKEN", cfg.NatsToken)
	cfg.APIToken = envStr("TICKETPAIRS_API_TOKEN", cfg.APIToken)

	cfg.RTURL = envStr("RT_URL", cfg.RTURL)
	cfg.RTUser = envStr("RT_USER", cfg.RTUser)
	cfg.RTPassword = envStr("RT_PASSWORD", cfg.RTPassword)
	cfg.Queue = envStr("RT_QUEUE", cfg.Queue)
	cfg.FromDate = envStr("TICKETPAIRS_FROM", cfg.FromDate)
	cfg.ToDate = envStr("TICKETPAIRS_TO", cfg.ToDate)
	cfg.WindowDays = envInt("TICKETPAIRS_WINDOW_DAYS", cfg.WindowDays)

	cfg.OutputDir = envStr("TICKETPAIRS_OUTPUT_DIR", cfg.OutputDir)
	cfg.OutputPrefix = envStr("TICKETPAIRS_OUTPUT_PREFIX", cfg.OutputPrefix)
	cfg.TrainRatio = envFloat("TICKETPAIRS_TRAIN_RATIO", cfg.TrainRatio)
	cfg.Seed = int64(envInt("TICKETPAIRS_SEED", int(cfg.Seed)))
	cfg.Workers = envInt("TICKETPAIRS_WORKERS", cfg.Workers)
	cfg.StatePath = envStr("TICKETPAIRS_STATE", cfg.StatePath)

	cfg.SlackBotToken = envStr("SLACK_BOT_TOKEN", cfg.SlackBotToken)
	cfg.SlackChannel = envStr("SLACK_SUMMARY_CHANNEL", cfg.SlackChannel)

	cfg.MergeTurns = envBool("TICKETPAIRS_MERGE_TURNS", cfg.MergeTurns)
	cfg.Queues = envList("TICKETPAIRS_QUEUES", cfg.Queues)
	cfg.SystemActor = envStr("RT_SYSTEM_ACTOR", cfg.SystemActor)
	cfg.BotActor = envStr("RT_BOT_ACTOR", cfg.BotActor)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envList reads a comma separated list.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
