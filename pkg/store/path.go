package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nix-community/go-nix/pkg/storepath"
)

// HashLen is the length of the nix-base32 hash part of a store path.
const HashLen = 32

// MaxNameLen bounds the name part of a store path.
const MaxNameLen = 211

// DrvExtension marks store derivations.
const DrvExtension = ".drv"

// ErrBadStorePath is wrapped by every parse failure.
var ErrBadStorePath = errors.New("bad store path")

// Path is a store path without its store directory.
type Path struct {
	Hash string
	Name string
}

// String returns the base name, hash-name.
func (p Path) String() string {
	return p.Hash + "-" + p.Name
}

// IsDerivation reports whether the path names a store derivation.
func (p Path) IsDerivation() bool {
	return strings.HasSuffix(p.Name, DrvExtension)
}

// ParseBaseName splits hash-name and validates both parts.
func ParseBaseName(base string) (Path, error) {
	if len(base) < HashLen+2 || base[HashLen] != '-' {
		return Path{}, fmt.Errorf("%w: %q is too short or lacks a hash", ErrBadStorePath, base)
	}
	sp, err := storepath.FromString(base)
	if err != nil {
		return Path{}, fmt.Errorf("%w: %q: %v", ErrBadStorePath, base, err)
	}
	if err := ValidateName(sp.Name); err != nil {
		return Path{}, err
	}
	return Path{Hash: base[:HashLen], Name: sp.Name}, nil
}

// ValidateName checks the name part of a store path.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrBadStorePath)
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("%w: name %q is longer than %d characters", ErrBadStorePath, name, MaxNameLen)
	}
	if name[0] == '.' {
		return fmt.Errorf("%w: name %q starts with a period", ErrBadStorePath, name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			c == '+' || c == '-' || c == '.' || c == '_' || c == '?' || c == '=') {
			return fmt.Errorf("%w: name %q contains illegal character %q", ErrBadStorePath, name, c)
		}
	}
	return nil
}
