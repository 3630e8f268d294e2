package store

import (
	"crypto/sha256"
	"fmt"
	"path"
	"strings"
)

// DefaultStoreDir is used when no directory is configured.
const DefaultStoreDir = "/nix/store"

// Store is the part of the artifact store the evaluator and printer need.
type Store interface {
	// StoreDir is the absolute directory holding store paths.
	StoreDir() string
	// PrintStorePath returns the canonical absolute form of p.
	PrintStorePath(p Path) string
	// ParseStorePath accepts an absolute path directly inside StoreDir.
	ParseStorePath(s string) (Path, error)
}

// Dir implements the path arithmetic shared by every store.
type Dir string

// StoreDir implements Store.
func (d Dir) StoreDir() string { return string(d) }

// PrintStorePath implements Store.
func (d Dir) PrintStorePath(p Path) string {
	return string(d) + "/" + p.String()
}

// ParseStorePath implements Store.
func (d Dir) ParseStorePath(s string) (Path, error) {
	clean := path.Clean(s)
	dir, base := path.Split(clean)
	if strings.TrimSuffix(dir, "/") != string(d) {
		return Path{}, fmt.Errorf("%w: path '%s' is not in the store", ErrBadStorePath, s)
	}
	return ParseBaseName(base)
}

// IsInStore reports whether s lies inside the store directory, possibly
// below a store path.
func (d Dir) IsInStore(s string) bool {
	return strings.HasPrefix(s, string(d)+"/")
}

// MakeTextPath returns the path a text file with the given name and content
// would occupy.
func (d Dir) MakeTextPath(name, content string) (Path, error) {
	if err := ValidateName(name); err != nil {
		return Path{}, err
	}
	inner := sha256.Sum256([]byte(content))
	return makePath(string(d), "text", inner[:], name), nil
}

// MakeOutputPath returns the output path named output of drv.
func (d Dir) MakeOutputPath(drv Path, output, name string) (Path, error) {
	if output != "out" {
		name = name + "-" + output
	}
	if err := ValidateName(name); err != nil {
		return Path{}, err
	}
	inner := sha256.Sum256([]byte(d.PrintStorePath(drv)))
	return makePath(string(d), "output:"+output, inner[:], name), nil
}

// LocalStore is a store with no backing registry: every well-formed path
// inside its directory is accepted.
type LocalStore struct {
	Dir
}

// NewLocalStore returns a store rooted at dir, or at DefaultStoreDir when
// dir is empty.
func NewLocalStore(dir string) *LocalStore {
	if dir == "" {
		dir = DefaultStoreDir
	}
	return &LocalStore{Dir: Dir(strings.TrimSuffix(dir, "/"))}
}
