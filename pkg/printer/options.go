package printer

import "math"

// Unlimited disables a bound.
const Unlimited = math.MaxInt

// Options controls how a value is rendered. Options are read-only for the
// duration of a render.
//
// The zero value bounds everything to 0: composites print as { ... } and
// strings as their elision marker. Start from DefaultOptions or
// ErrorOptions instead.
type Options struct {
	// Force evaluates deferred values before printing them.
	Force bool `yaml:"force" mapstructure:"force"`

	// DerivationPaths prints derivations as «derivation PATH» instead of
	// as attribute sets. Only effective together with Force.
	DerivationPaths bool `yaml:"derivation_paths" mapstructure:"derivation_paths"`

	// TrackRepeated prints «repeated» for composites already printed in the
	// same render.
	TrackRepeated bool `yaml:"track_repeated" mapstructure:"track_repeated"`

	// MaxDepth is the nesting depth beyond which composites print as
	// { ... } and [ ... ].
	MaxDepth int `yaml:"max_depth" mapstructure:"max_depth" validate:"gte=0"`

	// MaxAttributes bounds the total number of attributes printed.
	MaxAttributes int `yaml:"max_attributes" mapstructure:"max_attributes" validate:"gte=0"`

	// MaxListItems bounds the total number of list items printed.
	MaxListItems int `yaml:"max_list_items" mapstructure:"max_list_items" validate:"gte=0"`

	// MaxStringLength bounds the characters printed per string.
	MaxStringLength int `yaml:"max_string_length" mapstructure:"max_string_length" validate:"gte=0"`

	// ANSIColors decorates the output with terminal colors.
	ANSIColors bool `yaml:"ansi_colors" mapstructure:"ansi_colors"`
}

// DefaultOptions returns unbounded options with repeat tracking enabled.
func DefaultOptions() Options {
	return Options{
		TrackRepeated:   true,
		MaxDepth:        Unlimited,
		MaxAttributes:   Unlimited,
		MaxListItems:    Unlimited,
		MaxStringLength: Unlimited,
	}
}

// ErrorOptions returns the options used for values embedded in error and
// trace messages.
func ErrorOptions() Options {
	return Options{
		ANSIColors:      true,
		TrackRepeated:   true,
		MaxDepth:        10,
		MaxAttributes:   10,
		MaxListItems:    10,
		MaxStringLength: 1024,
	}
}
