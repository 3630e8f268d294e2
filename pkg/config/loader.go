package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openfroyo/lazyval/pkg/eval"
	"github.com/openfroyo/lazyval/pkg/telemetry"
	"github.com/openfroyo/lazyval/pkg/value"
)

// Format names a source language.
type Format string

const (
	FormatStarlark Format = "starlark"
	FormatCUE      Format = "cue"
)

// Document is a loaded source: the root value plus anything the source
// said about how it wants to be printed.
type Document struct {
	Format Format
	Root   value.Ref
	Files  []string

	// PrintOptions holds the raw print_options a source declared, nil if
	// it declared none. Decode them with DecodeOptions.
	PrintOptions map[string]interface{}
}

// Loader turns a source file into a value graph in an evaluator's arena.
type Loader interface {
	Format() Format
	Load(ctx context.Context, ev *eval.Evaluator, path string) (*Document, error)
	LoadString(ctx context.Context, ev *eval.Evaluator, filename, src string) (*Document, error)
}

// DetectFormat picks a format from a path: directories and .cue files are
// CUE, .star and .bzl files are Starlark.
func DetectFormat(path string) (Format, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return FormatCUE, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, nil
	case ".star", ".bzl", ".sky":
		return FormatStarlark, nil
	default:
		return "", fmt.Errorf("cannot tell the format of %s: want a .cue or .star file", path)
	}
}

// NewLoader returns the loader for format.
func NewLoader(format Format, logger *telemetry.Logger) (Loader, error) {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	switch format {
	case FormatStarlark:
		return NewStarlarkLoader(StarlarkOptions{}, logger), nil
	case FormatCUE:
		return NewCUELoader(logger), nil
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}
