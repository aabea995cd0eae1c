package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Filters struct {
		SkipTestFiles    bool `yaml:"skip_test_files"`
		MaxFunctionLines int  `yaml:"max_function_lines"`
		MaxChangedLines  int  `yaml:"max_changed_lines"`
	} `yaml:"filters"`
	Output struct {
		Path     string `yaml:"path"`     // JSONL output file
		Database string `yaml:"database"` // optional SQLite mirror, empty disables
	} `yaml:"output"`
}

// Default returns the built-in configuration: skip test files, cap functions
// at 800 lines and changes at 200 changed lines.
func Default() *Config {
	cfg := &Config{}
	cfg.Filters.SkipTestFiles = true
	cfg.Filters.MaxFunctionLines = 800
	cfg.Filters.MaxChangedLines = 200
	cfg.Output.Path = "extracted_functions.jsonl"
	return cfg
}

// LoadConfig reads the YAML config at path, falling back to defaults when the
// file does not exist. Environment variables (optionally via .env) override
// file values.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// 3. Override with environment variables if present
	if out := os.Getenv("FUNCDIFF_OUTPUT"); out != "" {
		cfg.Output.Path = out
	}
	if db := os.Getenv("FUNCDIFF_DB"); db != "" {
		cfg.Output.Database = db
	}
	if skip := os.Getenv("FUNCDIFF_SKIP_TEST_FILES"); skip != "" {
		if v, err := strconv.ParseBool(skip); err == nil {
			cfg.Filters.SkipTestFiles = v
		}
	}

	return cfg, nil
}
