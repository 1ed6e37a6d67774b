// Package seed loads document pointers from a data file into a sandbox table.
//
// Seeding refuses to run unless the function name, the environment and the
// table prefix all name a sandbox.
package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config configures a seeding run.
type Config struct {
	// Environment is the deployment environment name.
	Environment string `yaml:"environment"`

	// Prefix is the environment prefix of the table name.
	Prefix string `yaml:"prefix"`

	// FunctionName identifies the process doing the seeding.
	// Default: $AWS_LAMBDA_FUNCTION_NAME
	FunctionName string `yaml:"function_name"`

	// DataFile is a JSON array of document pointers.
	// Default: "data/document-pointer.json"
	DataFile string `yaml:"data_file"`

	AWS AWSConfig `yaml:"aws"`

	// Concurrency bounds concurrent creates.
	// Default: 4
	Concurrency int `yaml:"concurrency"`

	// CreateTable provisions the table before seeding.
	CreateTable bool `yaml:"create_table"`
}

// AWSConfig selects the DynamoDB endpoint.
type AWSConfig struct {
	Region          string  `yaml:"region"`
	Profile         string  `yaml:"profile"`
	Endpoint        string  `yaml:"endpoint"`
	MaxAttempts     int     `yaml:"max_attempts"`
	WritesPerSecond float64 `yaml:"writes_per_second"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.FunctionName == "" {
		c.FunctionName = os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
	}
	if c.DataFile == "" {
		c.DataFile = "data/document-pointer.json"
	}
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
}
