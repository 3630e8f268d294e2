package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/lazyval/pkg/printer"
)

var validate = validator.New()

// Profile is a named set of print settings kept in a YAML file.
//
//	print:
//	  force: true
//	  max_depth: 4
//	attr: packages.hello
//	store: /var/lib/lazyval/store.db
type Profile struct {
	Print printer.Options `yaml:"print"`

	// Attr is the attribute path selected before rendering.
	Attr string `yaml:"attr"`

	// Store is the path to the SQLite store database.
	Store string `yaml:"store"`

	// LogLevel overrides the configured log level.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error disabled"`
}

// DefaultProfile returns a profile with default print options.
func DefaultProfile() *Profile {
	return &Profile{Print: printer.DefaultOptions()}
}

// LoadProfile reads a YAML profile. Settings the file does not mention
// keep their defaults.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML profile.
func ParseProfile(data []byte) (*Profile, error) {
	p := DefaultProfile()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}

// ValidateOptions checks that every bound is non-negative.
func ValidateOptions(opts printer.Options) error {
	if err := validate.Struct(opts); err != nil {
		return fmt.Errorf("invalid print options: %w", err)
	}
	return nil
}

// DecodeOptions applies raw options, such as a script's print_options, on
// top of base. Unknown keys are rejected.
func DecodeOptions(raw map[string]interface{}, base printer.Options) (printer.Options, error) {
	opts := base
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &opts,
		TagName:     "mapstructure",
		ErrorUnused: true,
	})
	if err != nil {
		return base, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return base, fmt.Errorf("failed to decode print options: %w", err)
	}
	if err := ValidateOptions(opts); err != nil {
		return base, err
	}
	return opts, nil
}
