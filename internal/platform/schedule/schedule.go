// Package schedule runs the digest job on a cron expression in a configured timezone.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	// Embed tzdata for environments without zoneinfo.
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Error messages.
const (
	errFmtInvalidTimezone = "invalid timezone: %w"
	errFmtInvalidSpec     = "invalid cron spec %q: %w"
)

// ErrEmptySpec indicates no cron expression was configured.
var ErrEmptySpec = errors.New("empty cron spec")

var timezoneAliases = map[string]string{
	"Asia/Nicosia": "Europe/Nicosia",
}

// NormalizeTimezone maps known aliases to canonical IANA names.
func NormalizeTimezone(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	if canonical, ok := timezoneAliases[value]; ok {
		return canonical
	}

	return value
}

// Location resolves a timezone name or defaults to UTC.
func Location(tz string) (*time.Location, error) {
	if strings.TrimSpace(tz) == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(NormalizeTimezone(tz))
	if err != nil {
		return nil, fmt.Errorf(errFmtInvalidTimezone, err)
	}

	return loc, nil
}

// Runner triggers a job on a standard five-field cron expression.
// Overlapping runs are skipped.
type Runner struct {
	spec   string
	loc    *time.Location
	job    func(ctx context.Context)
	logger *zerolog.Logger
}

// NewRunner validates spec and tz and prepares a runner for job.
func NewRunner(spec, tz string, job func(ctx context.Context), logger *zerolog.Logger) (*Runner, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, ErrEmptySpec
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf(errFmtInvalidSpec, spec, err)
	}

	loc, err := Location(tz)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Runner{spec: spec, loc: loc, job: job, logger: logger}, nil
}

// Next returns the first activation strictly after t.
func (r *Runner) Next(t time.Time) time.Time {
	sched, err := cron.ParseStandard(r.spec)
	if err != nil {
		return time.Time{}
	}

	return sched.Next(t.In(r.loc))
}

// Run starts the cron loop and blocks until ctx is canceled. In-flight jobs
// finish before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	adapter := cronLogger{logger: r.logger}

	c := cron.New(
		cron.WithLocation(r.loc),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)

	if _, err := c.AddFunc(r.spec, func() { r.job(ctx) }); err != nil {
		return fmt.Errorf(errFmtInvalidSpec, r.spec, err)
	}

	r.logger.Info().
		Str("spec", r.spec).
		Str("timezone", r.loc.String()).
		Time("next_run", r.Next(time.Now())).
		Msg("scheduler started")

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	r.logger.Info().Msg("scheduler stopped")

	return nil
}

// cronLogger adapts zerolog to the cron.Logger interface.
type cronLogger struct {
	logger *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
