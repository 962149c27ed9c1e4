package digest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/platform/observability"
)

const (
	outDirPerm  = 0o755
	outFilePerm = 0o644
)

// Emitter writes issues to the output directory.
type Emitter struct {
	outDir string
	logger *zerolog.Logger
}

// NewEmitter creates an emitter rooted at outDir.
func NewEmitter(outDir string, logger *zerolog.Logger) *Emitter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Emitter{outDir: outDir, logger: logger}
}

// FileName returns the issue file name for a date.
func FileName(date time.Time) string {
	return "newsletter_" + date.Format(dateLayout) + ".md"
}

// Write stores the issue as newsletter_YYYY-MM-DD.md, replacing an earlier
// issue of the same day, and returns its path.
func (e *Emitter) Write(issue domain.IssueFinal, date time.Time) (string, error) {
	if err := os.MkdirAll(e.outDir, outDirPerm); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(e.outDir, FileName(date))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(issue.Markdown), outFilePerm); err != nil {
		return "", fmt.Errorf("write issue: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("replace issue: %w", err)
	}

	observability.DigestsWritten.WithLabelValues(strconv.FormatBool(issue.Polished)).Inc()
	observability.DigestWordCount.Set(float64(issue.WordCount))

	e.logger.Info().Str(logKeyPath, path).Int(logKeyWords, issue.WordCount).Bool("polished", issue.Polished).Msg("newsletter written")

	return path, nil
}
