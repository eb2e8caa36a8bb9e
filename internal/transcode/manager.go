package transcode

import (
	"bufio"
	"bytes"
	"log"
	"math"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solocast/backend/config"
	"github.com/solocast/backend/internal/metrics"
	"github.com/solocast/backend/internal/models"
)

// execCommand is replaced in tests.
var execCommand = exec.Command

// job guards one status record. Per-job locking keeps progress updates
// on one conversion from blocking status reads of another.
type job struct {
	mu  sync.Mutex
	rec models.TranscodeJob
}

// Manager runs conversions as independent ffmpeg subprocesses and
// tracks their status in memory for the lifetime of the process.
type Manager struct {
	cfg     config.TranscodeConfig
	metrics *metrics.Metrics

	mu   sync.RWMutex
	jobs map[string]*job
}

// NewManager creates a Manager. m may be nil.
func NewManager(cfg config.TranscodeConfig, m *metrics.Metrics) *Manager {
	return &Manager{
		cfg:     cfg,
		metrics: m,
		jobs:    make(map[string]*job),
	}
}

// Start registers a job for the finalized recording at srcPath and
// launches the conversion in the background. It returns immediately
// with the new job id; the record starts in the processing state.
func (m *Manager) Start(srcPath, srcURL string) string {
	id := uuid.NewString()

	j := &job{rec: models.TranscodeJob{
		ID:        id,
		Status:    models.JobProcessing,
		Progress:  0,
		SourceURL: srcURL,
		CreatedAt: time.Now(),
	}}

	m.mu.Lock()
	m.jobs[id] = j
	m.mu.Unlock()

	go m.run(j, srcPath, srcURL)
	return id
}

// Get returns a copy of the job record, or ok=false for an unknown id.
func (m *Manager) Get(id string) (models.TranscodeJob, bool) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return models.TranscodeJob{}, false
	}

	j.mu.Lock()
	rec := j.rec
	j.mu.Unlock()
	return rec, true
}

func (m *Manager) run(j *job, srcPath, srcURL string) {
	duration, err := ProbeDuration(m.cfg.FFprobeBin, srcPath)
	if err != nil {
		log.Printf("Job %s: duration probe failed, progress reporting disabled: %v", j.rec.ID, err)
		duration = 0
	}

	outPath := convertedPath(srcPath)
	cmd := execCommand(m.cfg.FFmpegBin,
		"-y",
		"-i", srcPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		m.fail(j, "failed to open conversion output: "+err.Error())
		return
	}
	if err := cmd.Start(); err != nil {
		m.fail(j, "failed to start conversion: "+err.Error())
		return
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		elapsed, ok := parseProgressSeconds(scanner.Text())
		if !ok {
			continue
		}
		m.setProgress(j, progressPercent(elapsed, duration))
	}

	if err := cmd.Wait(); err != nil {
		msg := lastLine(&stderr)
		if msg == "" {
			msg = err.Error()
		}
		m.fail(j, msg)
		return
	}

	m.done(j, srcPath, convertedURL(srcURL))
}

// setProgress raises the progress of a processing job. Progress never
// regresses and never moves once the job has settled.
func (m *Manager) setProgress(j *job, pct int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.rec.Status != models.JobProcessing {
		return
	}
	if pct > j.rec.Progress {
		j.rec.Progress = pct
	}
}

func (m *Manager) done(j *job, srcPath, outURL string) {
	j.mu.Lock()
	j.rec.Status = models.JobDone
	j.rec.Progress = 100
	j.rec.MP4URL = &outURL
	j.mu.Unlock()

	if m.metrics != nil {
		m.metrics.IncJob(models.JobDone)
	}
	log.Printf("Job %s: conversion done, output %s", j.rec.ID, outURL)

	// Best-effort: a failed delete is logged, not fatal to the job.
	if err := os.Remove(srcPath); err != nil {
		log.Printf("Job %s: failed to delete source %s: %v", j.rec.ID, srcPath, err)
	}
}

func (m *Manager) fail(j *job, msg string) {
	if len(msg) > 500 {
		msg = msg[:500]
	}
	j.mu.Lock()
	j.rec.Status = models.JobFailed
	j.rec.Error = &msg
	j.mu.Unlock()

	if m.metrics != nil {
		m.metrics.IncJob(models.JobFailed)
	}
	log.Printf("Job %s: conversion failed: %s", j.rec.ID, msg)
}

// parseProgressSeconds extracts the elapsed output time from one line
// of ffmpeg -progress output. out_time_ms is microseconds despite the
// name; out_time is HH:MM:SS.micro.
func parseProgressSeconds(line string) (float64, bool) {
	line = strings.TrimSpace(line)

	if v, ok := strings.CutPrefix(line, "out_time_ms="); ok {
		us, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		return float64(us) / 1e6, true
	}

	if v, ok := strings.CutPrefix(line, "out_time="); ok {
		parts := strings.Split(strings.TrimSpace(v), ":")
		if len(parts) != 3 {
			return 0, false
		}
		h, err1 := strconv.ParseFloat(parts[0], 64)
		m, err2 := strconv.ParseFloat(parts[1], 64)
		s, err3 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, false
		}
		return h*3600 + m*60 + s, true
	}

	return 0, false
}

// progressPercent maps elapsed output time to a 0-100 percentage. An
// unknown duration yields 0; completion sets 100 regardless.
func progressPercent(elapsed, duration float64) int {
	if duration <= 0 {
		return 0
	}
	pct := int(math.Round(elapsed / duration * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func convertedPath(srcPath string) string {
	return strings.TrimSuffix(srcPath, filepath.Ext(srcPath)) + ".mp4"
}

func convertedURL(srcURL string) string {
	return strings.TrimSuffix(srcURL, path.Ext(srcURL)) + ".mp4"
}

func lastLine(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
