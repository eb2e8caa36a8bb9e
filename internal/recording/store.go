package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	ErrInvalidKind     = fmt.Errorf("invalid recording kind")
	ErrInvalidFileName = fmt.Errorf("invalid recording file name")
)

var kindPattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

var labelStrip = regexp.MustCompile(`[^a-z0-9-_]`)

// Store manages the on-disk recordings tree. Recordings live under
// <root>/<kind>/ and are served under <publicPrefix>/<kind>/.
type Store struct {
	root         string
	publicPrefix string
}

// NewStore creates the recordings root if needed and returns a store.
func NewStore(root, publicPrefix string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	return &Store{
		root:         root,
		publicPrefix: strings.TrimSuffix(publicPrefix, "/"),
	}, nil
}

// Root returns the recordings root directory.
func (s *Store) Root() string {
	return s.root
}

// KindDir validates kind and returns its directory, creating it on
// first use.
func (s *Store) KindDir(kind string) (string, error) {
	if !kindPattern.MatchString(kind) {
		return "", ErrInvalidKind
	}
	dir := filepath.Join(s.root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create kind dir: %w", err)
	}
	return dir, nil
}

// FileName derives a recording file name from a caller-supplied label
// and the uploaded file's original name. The label is sanitized and the
// timestamp keeps concurrent uploads from colliding.
func (s *Store) FileName(label, originalName string) string {
	safeLabel := labelStrip.ReplaceAllString(strings.ToLower(label), "")
	if safeLabel == "" {
		safeLabel = "user"
	}
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return fmt.Sprintf("recording-%s-%s%s", safeLabel, ts, safeExtension(originalName))
}

// safeExtension extracts a bounded extension, defaulting to .webm like
// browser MediaRecorder output.
func safeExtension(originalName string) string {
	ext := filepath.Ext(originalName)
	if len(ext) > 10 {
		ext = ext[:10]
	}
	if ext == "" {
		ext = ".webm"
	}
	return ext
}

// FileURL returns the public URL for a stored recording.
func (s *Store) FileURL(kind, name string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicPrefix, kind, name)
}

// ConvertedName returns the distribution-format name for a recording.
func ConvertedName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".mp4"
}

// Resolve maps a requested recording to a path on disk. When the
// requested name is a pre-conversion name and the converted file
// exists, redirectTo carries the name to redirect the client to.
func (s *Store) Resolve(kind, name string) (path string, redirectTo string, err error) {
	if !kindPattern.MatchString(kind) {
		return "", "", ErrInvalidKind
	}
	if name == "" || filepath.Base(name) != name {
		return "", "", ErrInvalidFileName
	}

	dir := filepath.Join(s.root, kind)
	path = filepath.Join(dir, name)

	if converted := ConvertedName(name); converted != name {
		if _, statErr := os.Stat(filepath.Join(dir, converted)); statErr == nil {
			return path, converted, nil
		}
	}
	return path, "", nil
}
