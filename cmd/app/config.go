package main

import (
	"fmt"
	"strings"
	"time"

	"points_bot/internal/bot"
	"points_bot/internal/model"
	"points_bot/internal/repository"
	"points_bot/internal/service"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

const (
	driverFile     = "file"
	driverPostgres = "postgres"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Economy   EconomyConfig   `yaml:"economy"`
	Tasks     []model.Task    `yaml:"tasks"`
	Broadcast BroadcastConfig `yaml:"broadcast"`

	LogLevel string `yaml:"logLevel"`

	// RestoreBackup rolls the ledger back to the pre-save copy before start.
	RestoreBackup bool `yaml:"-"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`

	// InsecureSkipInitData accepts unsigned mini-app init data. Development
	// only: any caller can impersonate any user.
	InsecureSkipInitData bool `yaml:"insecureSkipInitData"`
}

type TelegramConfig struct {
	BotToken         string   `yaml:"botToken"`
	Debug            bool     `yaml:"debug"`
	ModeratorID      int64    `yaml:"moderatorId"`
	RequiredChannels []string `yaml:"requiredChannels"`
	BotUsername      string   `yaml:"botUsername"`
	UpdateTimeout    int      `yaml:"updateTimeout"`
}

type LedgerConfig struct {
	Driver     string            `yaml:"driver"`
	Path       string            `yaml:"path"`
	BackupPath string            `yaml:"backupPath"`
	Database   repository.Config `yaml:"database"`
}

type EconomyConfig struct {
	ReferredBonus   int `yaml:"referredBonus"`
	ReferrerBonus   int `yaml:"referrerBonus"`
	DailyBonus      int `yaml:"dailyBonus"`
	RedeemCost      int `yaml:"redeemCost"`
	LeaderboardSize int `yaml:"leaderboardSize"`
}

type BroadcastConfig struct {
	RatePerSecond float64       `yaml:"ratePerSecond"`
	Burst         int           `yaml:"burst"`
	Retries       int           `yaml:"retries"`
	Backoff       time.Duration `yaml:"backoff"`
}

func LoadConfig(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("app", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to the config file")
	restore := flags.Bool("restore-backup", false, "restore the ledger from its backup before starting")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(configPath)
		v.SetConfigType(configFormat)
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.RestoreBackup = *restore

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	economy := service.DefaultConfig()
	notifier := bot.DefaultNotifierConfig()

	v.SetDefault("logLevel", "info")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8888")
	v.SetDefault("server.insecureSkipInitData", false)
	v.SetDefault("telegram.updateTimeout", 60)
	v.SetDefault("ledger.driver", driverFile)
	v.SetDefault("ledger.path", "points_data.json")
	v.SetDefault("ledger.backupPath", "points_data.json.bak")
	v.SetDefault("economy.referredBonus", economy.ReferredBonus)
	v.SetDefault("economy.referrerBonus", economy.ReferrerBonus)
	v.SetDefault("economy.dailyBonus", economy.DailyBonus)
	v.SetDefault("economy.redeemCost", economy.RedeemCost)
	v.SetDefault("economy.leaderboardSize", economy.LeaderboardSize)
	v.SetDefault("tasks", economy.Tasks)
	v.SetDefault("broadcast.ratePerSecond", notifier.RatePerSecond)
	v.SetDefault("broadcast.burst", notifier.Burst)
	v.SetDefault("broadcast.retries", notifier.Retries)
	v.SetDefault("broadcast.backoff", notifier.Backoff)
}

func (c *Config) validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.botToken is required")
	}
	if c.Telegram.ModeratorID == 0 {
		return fmt.Errorf("telegram.moderatorId is required")
	}
	switch c.Ledger.Driver {
	case driverFile, driverPostgres:
	default:
		return fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver)
	}
	for _, t := range c.Tasks {
		if t.ID == "" || t.ProofMarker == "" {
			return fmt.Errorf("task %q needs an id and a proof marker", t.Title)
		}
	}
	return nil
}

func (c *Config) Service() service.Config {
	return service.Config{
		ModeratorID:     c.Telegram.ModeratorID,
		ReferredBonus:   c.Economy.ReferredBonus,
		ReferrerBonus:   c.Economy.ReferrerBonus,
		DailyBonus:      c.Economy.DailyBonus,
		RedeemCost:      c.Economy.RedeemCost,
		LeaderboardSize: c.Economy.LeaderboardSize,
		Tasks:           c.Tasks,
	}
}

func (c *Config) Bot() bot.Config {
	return bot.Config{
		BotToken:         c.Telegram.BotToken,
		Debug:            c.Telegram.Debug,
		BotUsername:      c.Telegram.BotUsername,
		RequiredChannels: c.Telegram.RequiredChannels,
		UpdateTimeout:    c.Telegram.UpdateTimeout,
	}
}

func (c *Config) Notifier() bot.NotifierConfig {
	return bot.NotifierConfig{
		RatePerSecond: c.Broadcast.RatePerSecond,
		Burst:         c.Broadcast.Burst,
		Retries:       c.Broadcast.Retries,
		Backoff:       c.Broadcast.Backoff,
	}
}
