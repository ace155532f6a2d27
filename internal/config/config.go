// Package config provides YAML-file-plus-environment configuration for
// smtp-send, including the process-wide default SMTP server.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	// Transport selects the delivery backend: smtp, ses, msgraph or
	// stdout. Empty means auto-detection.
	Transport string `yaml:"transport" env:"TRANSPORT"`

	SMTP    SMTPConfig    `yaml:"smtp" envPrefix:"SMTP_"`
	SES     SESConfig     `yaml:"ses" envPrefix:"SES_"`
	Graph   GraphConfig   `yaml:"graph" envPrefix:"GRAPH_"`
	TLS     TLSConfig     `yaml:"tls" envPrefix:"TLS_"`
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOG_"`
}

// SMTPConfig holds SMTP transport defaults. Server is the process-wide
// default host used when no explicit server is supplied per invocation.
type SMTPConfig struct {
	Server   string `yaml:"server" env:"SERVER"`
	Port     int    `yaml:"port" env:"PORT"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
	HELO     string `yaml:"helo" env:"HELO"`
}

// SESConfig holds AWS SES transport configuration.
type SESConfig struct {
	Region          string `yaml:"region" env:"REGION"`
	AccessKeyID     string `yaml:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SECRET_ACCESS_KEY"`
}

// GraphConfig holds Microsoft Graph transport configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id" env:"TENANT_ID"`
	ClientID     string `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"CLIENT_SECRET"`
}

// TLSConfig holds client TLS trust settings for secured SMTP sessions.
type TLSConfig struct {
	CAFile   string `yaml:"ca_file" env:"CA_FILE"`
	Insecure bool   `yaml:"insecure" env:"INSECURE"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// Load loads configuration from environment variables with sensible
// defaults. Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

// DefaultServer returns the process-wide default SMTP server, or the empty
// string when none is configured. Callers treat it as a snapshot taken at
// resolution time.
func (c *Config) DefaultServer() string {
	return c.SMTP.Server
}

// SESConfigured returns true if the SES transport has a region to work with.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != ""
}

// GraphConfigured returns true if all three Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Logging.Level = "info"
}
