package recording

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/solocast/backend/internal/metrics"
)

// Sweeper deletes stored recordings once they outlive the retention
// window. Per-file failures are logged and never abort the pass.
type Sweeper struct {
	root     string
	window   time.Duration
	interval time.Duration
	metrics  *metrics.Metrics
}

// NewSweeper creates a sweeper over the recordings root. m may be nil.
func NewSweeper(root string, window, interval time.Duration, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		root:     root,
		window:   window,
		interval: interval,
		metrics:  m,
	}
}

// Start sweeps once immediately and then on the configured interval for
// the lifetime of the process.
func (s *Sweeper) Start() {
	s.Sweep()
	ticker := time.NewTicker(s.interval)
	go func() {
		for range ticker.C {
			s.Sweep()
		}
	}()
}

// Sweep deletes every recording older than the retention window and
// returns the number of files removed.
func (s *Sweeper) Sweep() int {
	cutoff := time.Now().Add(-s.window)
	removed := 0

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("Sweep: cannot access %s: %v", path, err)
			s.countError()
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			log.Printf("Sweep: cannot stat %s: %v", path, err)
			s.countError()
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			log.Printf("Sweep: cannot delete %s: %v", path, err)
			s.countError()
			return nil
		}
		removed++
		log.Printf("Sweep: deleted expired recording %s", path)
		return nil
	})
	if err != nil {
		log.Printf("Sweep: walk failed: %v", err)
	}

	if removed > 0 && s.metrics != nil {
		s.metrics.AddSweptFiles(removed)
	}
	return removed
}

func (s *Sweeper) countError() {
	if s.metrics != nil {
		s.metrics.IncSweepError()
	}
}
