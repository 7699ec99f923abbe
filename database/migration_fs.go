package database

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/idling-app/dbmigrate/log"
)

var (
	migrationFilePattern = regexp.MustCompile(`^\d{4}-.*\.sql$`)
	whitespace           = regexp.MustCompile(`[\s\v\x{2028}\x{2029}\x{FEFF}\p{Zs}]+`)

	errInvalidFileName = errors.New("invalid migration file name")
)

// Dir is a migrations directory that can be listed, read and written.
type Dir interface {
	fs.ReadDirFS
	fs.ReadFileFS
	WriteFile(name string, data []byte) error
}

// OSDir is a Dir backed by a directory on disk.
type OSDir struct {
	path string
	fsys fs.FS
}

// NewOSDir returns a Dir rooted at path.
func NewOSDir(path string) *OSDir {
	return &OSDir{path: path, fsys: os.DirFS(path)}
}

// Path returns the directory path.
func (d *OSDir) Path() string {
	return d.path
}

// Open implements fs.FS.
func (d *OSDir) Open(name string) (fs.File, error) {
	return d.fsys.Open(name)
}

// ReadDir implements fs.ReadDirFS.
func (d *OSDir) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(d.fsys, name)
}

// ReadFile implements fs.ReadFileFS.
func (d *OSDir) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(d.fsys, name)
}

// WriteFile creates or truncates the named file directly inside the directory.
func (d *OSDir) WriteFile(name string, data []byte) error {
	if !fs.ValidPath(name) || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", errInvalidFileName, name)
	}
	return os.WriteFile(filepath.Join(d.path, name), data, 0o644) //nolint:gosec
}

// EnsureDir creates the migrations directory at path if it does not exist.
// A concurrent creation by another process is not an error.
func EnsureDir(path string) error {
	return ensureDir(path, os.Mkdir)
}

func ensureDir(path string, mkdir func(string, os.FileMode) error) error {
	log.Debug("ensuring migrations directory exists", "path", path)

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	err := mkdir(path, 0o755)
	if err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("failed to create migrations directory: %w", err)
	}
	return nil
}

// ListMigrationFiles returns the names of files in fsys matching the
// NNNN-description.sql convention, sorted lexicographically. Anything else
// (READMEs, dotfiles, differently named .sql files, directories) is ignored.
func ListMigrationFiles(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !migrationFilePattern.MatchString(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}

	slices.Sort(names)

	return names, nil
}

// NextSequenceNumber returns the zero-padded number for the next migration.
// It is one more than the highest leading number among the .sql names, so
// gaps are never backfilled. With no numbered files it returns "0000".
func NextSequenceNumber(names []string) string {
	highest := -1
	for _, name := range names {
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		prefix, _, _ := strings.Cut(name, "-")
		n, ok := leadingNumber(prefix)
		if !ok {
			continue
		}
		highest = max(highest, n)
	}

	return fmt.Sprintf("%04d", highest+1)
}

func leadingNumber(s string) (int, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Slug lowercases description and replaces each whitespace run with a hyphen.
func Slug(description string) string {
	return whitespace.ReplaceAllString(strings.ToLower(description), "-")
}

// MigrationFileName builds the file name for a new migration.
func MigrationFileName(number, description string) string {
	return number + "-" + Slug(description) + ".sql"
}
