package transcode

import (
	"fmt"
	"strconv"
	"strings"
)

// ProbeDuration asks ffprobe for the media duration in seconds. The
// caller treats failure as "duration unknown", which only disables
// percentage computation.
func ProbeDuration(ffprobeBin, path string) (float64, error) {
	out, err := execCommand(ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("ffprobe reported non-positive duration %v", seconds)
	}
	return seconds, nil
}
