package ranking

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/platform/observability"
)

const (
	boostWeight     = 0.2
	preferenceBoost = 0.2
	themeSeparator  = "|"
	logDirPerm      = 0o755
	logFilePerm     = 0o644
	logKeyPath      = "path"
	logKeyRow       = "row"
	columnTimestamp = "timestamp"
	columnItemURL   = "item_url"
	columnSource    = "source"
	columnThemes    = "themes"
	columnEvent     = "event"
	floatFormat     = 'g'
	floatPrecision  = -1
	floatBits       = 64
)

// logColumns is the interaction log header.
var logColumns = []string{
	columnTimestamp, columnItemURL, columnSource, columnThemes, columnEvent,
	domain.FeatureNovelty, domain.FeatureAuthority, domain.FeatureKeywordHits, domain.FeatureEngagement,
}

// ImpressionRecorder receives one call per scored item.
type ImpressionRecorder interface {
	RecordImpression(item domain.Item, features domain.FeatureVector) error
}

// Summary holds interaction counts. Impressions are not counted.
type Summary struct {
	BySource map[string]int
	ByTheme  map[string]int
}

// Tracker appends interaction events to a CSV log and derives engagement
// boosts from it. It is the only writer of the log.
type Tracker struct {
	path      string
	extractor *Extractor
	now       func() time.Time
	logger    *zerolog.Logger

	stat func(string) (fs.FileInfo, error)

	mu       sync.Mutex
	loaded   logStamp
	bySource map[string]int
	byTheme  map[string]int
}

// logStamp identifies the log contents the counts were built from. The zero
// value means nothing has been read yet.
type logStamp struct {
	read  bool
	size  int64
	mtime time.Time
}

func stampOf(info fs.FileInfo) logStamp {
	return logStamp{read: true, size: info.Size(), mtime: info.ModTime()}
}

// NewTracker creates a tracker over the log at path.
func NewTracker(path string, extractor *Extractor, logger *zerolog.Logger) *Tracker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if extractor == nil {
		extractor = NewExtractor(nil)
	}

	return &Tracker{
		path:      path,
		extractor: extractor,
		now:       time.Now,
		logger:    logger,
		stat:      os.Stat,
		bySource:  make(map[string]int),
		byTheme:   make(map[string]int),
	}
}

// Path returns the interaction log location.
func (t *Tracker) Path() string {
	return t.path
}

// Record appends an event for item with its current feature snapshot.
func (t *Tracker) Record(item domain.Item, kind domain.EventKind) error {
	return t.append(item, kind, t.extractor.Extract(item))
}

// RecordImpression appends an impression with the features used for scoring.
func (t *Tracker) RecordImpression(item domain.Item, features domain.FeatureVector) error {
	return t.append(item, domain.EventImpression, features)
}

func (t *Tracker) append(item domain.Item, kind domain.EventKind, f domain.FeatureVector) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureLoaded(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(t.path), logDirPerm); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	file, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFilePerm)
	if err != nil {
		return fmt.Errorf("open interaction log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat interaction log: %w", err)
	}

	w := csv.NewWriter(file)

	if info.Size() == 0 {
		if err := w.Write(logColumns); err != nil {
			return fmt.Errorf("write log header: %w", err)
		}
	}

	row := []string{
		t.now().UTC().Format(time.RFC3339Nano),
		item.URL,
		item.Source,
		strings.Join(item.Tags, themeSeparator),
		string(kind),
		formatFloat(f.Novelty),
		formatFloat(f.Authority),
		formatFloat(f.KeywordHits),
		formatFloat(f.Engagement),
	}

	if err := w.Write(row); err != nil {
		return fmt.Errorf("write log row: %w", err)
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("flush interaction log: %w", err)
	}

	observability.InteractionEvents.WithLabelValues(string(kind)).Inc()

	if kind != domain.EventImpression {
		t.count(item.Source, item.Tags)
	}

	if info, err := file.Stat(); err == nil {
		t.loaded = stampOf(info)
	}

	return nil
}

// Summarize returns the counts by source and by theme of every
// non-impression event.
func (t *Tracker) Summarize() (Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureLoaded(); err != nil {
		return Summary{BySource: map[string]int{}, ByTheme: map[string]int{}}, err
	}

	return Summary{BySource: copyCounts(t.bySource), ByTheme: copyCounts(t.byTheme)}, nil
}

// Boost returns 0.2 times the larger of the item's normalized source rate and
// its best normalized theme rate. It is 0 without events.
func (t *Tracker) Boost(item domain.Item) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureLoaded(); err != nil {
		t.logger.Warn().Err(err).Str(logKeyPath, t.path).Msg("interaction log unreadable, no engagement boost")
		return 0
	}

	sourceMax := maxCount(t.bySource)
	themeMax := maxCount(t.byTheme)

	var sourceScore, themeScore float64

	if sourceMax > 0 {
		sourceScore = float64(t.bySource[item.Source]) / float64(sourceMax)
	}

	if themeMax > 0 {
		best := 0

		for _, tag := range item.Tags {
			best = max(best, t.byTheme[tag])
		}

		themeScore = float64(best) / float64(themeMax)
	}

	return boostWeight * max(sourceScore, themeScore)
}

// PersonalizedBoost adds 0.2 for a preferred source and 0.2 when any tag is a
// preferred theme.
func PersonalizedBoost(item domain.Item, profile *domain.Profile) float64 {
	if profile.IsEmpty() {
		return 0
	}

	var boost float64

	for _, s := range profile.Sources {
		if s == item.Source {
			boost += preferenceBoost
			break
		}
	}

	themes := make(map[string]struct{}, len(profile.Themes))
	for _, th := range profile.Themes {
		themes[th] = struct{}{}
	}

	if item.HasTag(themes) {
		boost += preferenceBoost
	}

	return boost
}

// ensureLoaded rebuilds the counts whenever the log's size or modification
// time differs from the last read, so events appended by another process
// (record mode) are seen. Callers hold t.mu.
func (t *Tracker) ensureLoaded() error {
	info, err := t.stat(t.path)
	if err != nil {
		if !stderrors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat interaction log: %w", err)
		}

		t.reset()
		t.loaded = logStamp{read: true}

		return nil
	}

	stamp := stampOf(info)
	if t.loaded.read && t.loaded.size == stamp.size && t.loaded.mtime.Equal(stamp.mtime) {
		return nil
	}

	events, err := ReadEvents(t.path, t.logger)
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return err
	}

	t.reset()

	for _, e := range events {
		if e.Kind != domain.EventImpression {
			t.count(e.Source, e.Themes)
		}
	}

	t.loaded = stamp

	return nil
}

func (t *Tracker) reset() {
	clear(t.bySource)
	clear(t.byTheme)
}

func (t *Tracker) count(source string, themes []string) {
	t.bySource[source]++

	for _, th := range themes {
		t.byTheme[th]++
	}
}

// ReadEvents parses the interaction log. Columns are matched by header name,
// so logs lacking the source and themes columns still load. Rows that fail to
// parse are skipped with a warning. A missing file returns fs.ErrNotExist.
func ReadEvents(path string, logger *zerolog.Logger) ([]domain.InteractionEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open interaction log: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, nil
		}

		return nil, fmt.Errorf("read log header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var events []domain.InteractionEvent

	for rowNum := 1; ; rowNum++ {
		rec, err := r.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			if logger != nil {
				logger.Warn().Err(err).Int(logKeyRow, rowNum).Msg("skipping unreadable interaction row")
			}

			continue
		}

		ev, err := parseEvent(rec, index)
		if err != nil {
			if logger != nil {
				logger.Warn().Err(err).Int(logKeyRow, rowNum).Msg("skipping malformed interaction row")
			}

			continue
		}

		events = append(events, ev)
	}

	return events, nil
}

func parseEvent(rec []string, index map[string]int) (domain.InteractionEvent, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(rec) {
			return ""
		}

		return rec[i]
	}

	ev := domain.InteractionEvent{
		ItemURL: field(columnItemURL),
		Source:  field(columnSource),
		Kind:    domain.EventKind(field(columnEvent)),
	}

	if ts := field(columnTimestamp); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return ev, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}

		ev.Timestamp = parsed
	}

	if themes := field(columnThemes); themes != "" {
		ev.Themes = strings.Split(themes, themeSeparator)
	}

	var err error

	if ev.Features.Novelty, err = parseFeature(field(domain.FeatureNovelty)); err != nil {
		return ev, err
	}

	if ev.Features.Authority, err = parseFeature(field(domain.FeatureAuthority)); err != nil {
		return ev, err
	}

	if ev.Features.KeywordHits, err = parseFeature(field(domain.FeatureKeywordHits)); err != nil {
		return ev, err
	}

	if ev.Features.Engagement, err = parseFeature(field(domain.FeatureEngagement)); err != nil {
		return ev, err
	}

	return ev, nil
}

func parseFeature(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v), floatBits)
	if err != nil {
		return 0, fmt.Errorf("parse feature %q: %w", v, err)
	}

	return f, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, floatFormat, floatPrecision, floatBits)
}

func maxCount(m map[string]int) int {
	best := 0
	for _, v := range m {
		best = max(best, v)
	}

	return best
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
