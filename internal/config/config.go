// Package config defines the data structures related to configuration and
// includes functions for loading and parsing the config.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/loan-schedule/pkg/amortization"
	"github.com/iwvelando/loan-schedule/pkg/constants"
	"github.com/iwvelando/loan-schedule/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for loan-schedule.
type Configuration struct {
	Policy     Policy        `yaml:"policy,omitempty"`
	Compliance Compliance    `yaml:"compliance,omitempty"`
	Logging    LoggingConfig `yaml:"logging,omitempty"`
	Output     OutputConfig  `yaml:"output,omitempty"`
}

// Policy holds the business limits applied before a schedule is built.
type Policy struct {
	MinInstallments          int     `yaml:"minInstallments,omitempty"`
	MaxInstallments          int     `yaml:"maxInstallments,omitempty"`
	MaxPrincipal             float64 `yaml:"maxPrincipal,omitempty"`
	RateConvention           string  `yaml:"rateConvention,omitempty"` // effective, nominal
	RequireSignedDeclaration bool    `yaml:"requireSignedDeclaration,omitempty"`
}

// Compliance holds regulatory thresholds.
type Compliance struct {
	UIT float64 `yaml:"uit,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("policy.minInstallments", constants.DefaultMinInstallments)
	v.SetDefault("policy.maxInstallments", constants.DefaultMaxInstallments)
	v.SetDefault("policy.maxPrincipal", constants.DefaultMaxPrincipal)
	v.SetDefault("policy.rateConvention", constants.RateConventionEffective)
	v.SetDefault("policy.requireSignedDeclaration", true)
	v.SetDefault("compliance.uit", constants.DefaultUIT)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	return &configuration, nil
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Keys missing from the file fall back to defaults and
// every key can be overridden with a LOANSCHEDULE_ prefixed environment
// variable, e.g. LOANSCHEDULE_COMPLIANCE_UIT.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config, %w", err)
	}
	return decode(v)
}

// Defaults returns the configuration used when no file is given. Environment
// overrides still apply.
func Defaults() *Configuration {
	configuration, err := decode(newViper())
	if err != nil {
		return &Configuration{
			Policy: Policy{
				MinInstallments:          constants.DefaultMinInstallments,
				MaxInstallments:          constants.DefaultMaxInstallments,
				MaxPrincipal:             constants.DefaultMaxPrincipal,
				RateConvention:           constants.RateConventionEffective,
				RequireSignedDeclaration: true,
			},
			Compliance: Compliance{UIT: constants.DefaultUIT},
			Output:     OutputConfig{Format: constants.OutputFormatPretty},
		}
	}
	return configuration
}

// InstallmentPolicy returns the configured installment range.
func (c *Configuration) InstallmentPolicy() validation.InstallmentPolicy {
	return validation.InstallmentPolicy{Min: c.Policy.MinInstallments, Max: c.Policy.MaxInstallments}
}

// RateConvention parses the configured rate convention.
func (c *Configuration) RateConvention() (amortization.RateConvention, error) {
	return amortization.ParseRateConvention(c.Policy.RateConvention)
}

// UIT returns the configured tax unit, falling back to the default.
func (c *Configuration) UIT() float64 {
	if c.Compliance.UIT <= 0 {
		return constants.DefaultUIT
	}
	return c.Compliance.UIT
}

// Validate checks for settings that make the configuration unusable.
func (c *Configuration) Validate() error {
	if err := c.InstallmentPolicy().Validate(); err != nil {
		return err
	}
	if c.Policy.MaxPrincipal <= 0 {
		return fmt.Errorf("policy.maxPrincipal must be greater than 0, got %v", c.Policy.MaxPrincipal)
	}
	if _, err := c.RateConvention(); err != nil {
		return err
	}
	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		return err
	}
	return nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	return validation.PolicyWarnings(c.InstallmentPolicy(), c.Policy.MaxPrincipal, c.UIT())
}
