package app

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"
)

type Config struct {
	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Tokens struct {
		RedisURL    string `toml:"redis_url"`
		KeyTemplate string `toml:"key_template"`
	} `toml:"tokens"`

	Github struct {
		APIBaseURL string `toml:"api_base_url"`
		CloneHost  string `toml:"clone_host"`
		// Fallback bot credentials for installs without redis.
		Account string `toml:"account"`
		Token   string `toml:"token"`
	} `toml:"github"`

	Fetch struct {
		SubmissionsDir string `toml:"submissions_dir"`
		Lockfile       string `toml:"lockfile"`
		GitBinary      string `toml:"git_binary"`
		DateFormat     string `toml:"date_format"`
	} `toml:"fetch"`

	Metrics struct {
		PushgatewayURL string `toml:"pushgateway_url"`
	} `toml:"metrics"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	if config.Database.DSN == "" {
		return nil, fmt.Errorf("database DSN is not specified in config")
	}
	if config.Fetch.SubmissionsDir == "" {
		return nil, fmt.Errorf("fetch submissions_dir is not specified in config")
	}

	if config.Database.MigrationsDir == "" {
		config.Database.MigrationsDir = "./migrations"
	}
	if config.Tokens.KeyTemplate == "" {
		config.Tokens.KeyTemplate = "gitbot:course:{course}"
	}
	if config.Fetch.Lockfile == "" {
		config.Fetch.Lockfile = "gitbot.lock"
	}
	if config.Fetch.GitBinary == "" {
		config.Fetch.GitBinary = "git"
	}
	if config.Fetch.DateFormat == "" {
		config.Fetch.DateFormat = "2006-01-02"
	}

	logger.Debug.Printf("Loaded fetch config: %+v", config.Fetch)

	return &config, nil
}
