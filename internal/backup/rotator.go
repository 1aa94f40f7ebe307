// Package backup implements time-tiered rotation of the encrypted archive:
// a current slot plus daily, weekly and monthly retention tiers with
// promotion and pruning. The archive is copied as-is, never decrypted.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/inkleaf/inkleaf/internal/apperr"
	"github.com/inkleaf/inkleaf/internal/logging"
)

const (
	keepDailyDays   = 7
	keepWeeklyWeeks = 4
	keepMonthlyMos  = 12

	// An existing daily backup older than this is refreshed.
	dailyRefreshAge = 10 * time.Minute

	backupExt = ".enc"
)

// Rotator manages one backup root. Not safe for concurrent use.
type Rotator struct {
	currentPath string
	dailyDir    string
	weeklyDir   string
	monthlyDir  string
	now         func() time.Time
}

// Option configures a Rotator.
type Option func(*Rotator)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Rotator) { r.now = now }
}

// NewRotator creates the tier directories under root.
func NewRotator(root string, opts ...Option) (*Rotator, error) {
	r := &Rotator{
		currentPath: filepath.Join(root, "current"+backupExt),
		dailyDir:    filepath.Join(root, "daily"),
		weeklyDir:   filepath.Join(root, "weekly"),
		monthlyDir:  filepath.Join(root, "monthly"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, dir := range []string{r.dailyDir, r.weeklyDir, r.monthlyDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.Wrap(apperr.ErrIOFailure, "creating backup directory", err)
		}
	}
	return r, nil
}

// CurrentPath returns the current-slot path.
func (r *Rotator) CurrentPath() string {
	return r.currentPath
}

// Rotate copies the archive into the current slot, promotes it through the
// tiers, and prunes expired backups. Called after each successful save.
func (r *Rotator) Rotate(archivePath string) error {
	if _, err := os.Stat(archivePath); errors.Is(err, os.ErrNotExist) {
		logging.Warn("nothing to back up, archive missing", map[string]interface{}{
			"path": archivePath,
		})
		return nil
	}

	if err := atomicCopy(archivePath, r.currentPath); err != nil {
		return err
	}

	now := r.now()
	if err := r.promoteDaily(now); err != nil {
		return err
	}
	if err := r.promoteWeekly(now); err != nil {
		return err
	}
	if err := r.promoteMonthly(now); err != nil {
		return err
	}

	if err := r.pruneDaily(now); err != nil {
		return err
	}
	if err := r.pruneWeekly(now); err != nil {
		return err
	}
	return r.pruneMonthly(now)
}

func dailyName(t time.Time) string   { return t.Format("2006-01-02") + backupExt }
func monthlyName(t time.Time) string { return t.Format("2006-01") + backupExt }

func weeklyName(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d%s", year, week, backupExt)
}

// promoteDaily writes today's daily backup when absent or stale.
func (r *Rotator) promoteDaily(now time.Time) error {
	dst := filepath.Join(r.dailyDir, dailyName(now))
	info, err := os.Stat(dst)
	if err == nil && now.Sub(info.ModTime()) <= dailyRefreshAge {
		return nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Wrap(apperr.ErrIOFailure, "stating daily backup", err)
	}
	return atomicCopy(r.currentPath, dst)
}

// promoteWeekly fills this week's slot, Mondays only.
func (r *Rotator) promoteWeekly(now time.Time) error {
	if now.Weekday() != time.Monday {
		return nil
	}
	dst := filepath.Join(r.weeklyDir, weeklyName(now))
	if _, err := os.Stat(dst); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return apperr.Wrap(apperr.ErrIOFailure, "stating weekly backup", err)
	}
	return atomicCopy(r.currentPath, dst)
}

// promoteMonthly fills this month's slot during the first 7 days.
func (r *Rotator) promoteMonthly(now time.Time) error {
	if now.Day() > 7 {
		return nil
	}
	dst := filepath.Join(r.monthlyDir, monthlyName(now))
	if _, err := os.Stat(dst); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return apperr.Wrap(apperr.ErrIOFailure, "stating monthly backup", err)
	}
	return atomicCopy(r.currentPath, dst)
}

// pruneDaily deletes dailies older than the window, first promoting Monday
// backups into any vacant weekly slot so history is not lost.
func (r *Rotator) pruneDaily(now time.Time) error {
	names, err := listBackups(r.dailyDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		day, err := parseDaily(name)
		if err != nil {
			return err
		}
		if now.Sub(day) <= keepDailyDays*24*time.Hour {
			continue
		}
		src := filepath.Join(r.dailyDir, name)
		if day.Weekday() == time.Monday {
			weeklyDst := filepath.Join(r.weeklyDir, weeklyName(day))
			if _, err := os.Stat(weeklyDst); errors.Is(err, os.ErrNotExist) {
				if err := atomicCopy(src, weeklyDst); err != nil {
					return err
				}
			}
		}
		if err := os.Remove(src); err != nil {
			return apperr.Wrap(apperr.ErrIOFailure, "removing expired daily backup", err)
		}
	}
	return nil
}

// pruneWeekly deletes weeklies older than the window, promoting each into
// its month's slot first when vacant.
func (r *Rotator) pruneWeekly(now time.Time) error {
	names, err := listBackups(r.weeklyDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		weekStart, err := parseWeekly(name)
		if err != nil {
			return err
		}
		if now.Sub(weekStart) <= keepWeeklyWeeks*7*24*time.Hour {
			continue
		}
		src := filepath.Join(r.weeklyDir, name)
		monthlyDst := filepath.Join(r.monthlyDir, monthlyName(weekStart))
		if _, err := os.Stat(monthlyDst); errors.Is(err, os.ErrNotExist) {
			if err := atomicCopy(src, monthlyDst); err != nil {
				return err
			}
		}
		if err := os.Remove(src); err != nil {
			return apperr.Wrap(apperr.ErrIOFailure, "removing expired weekly backup", err)
		}
	}
	return nil
}

// pruneMonthly deletes monthlies older than the window.
func (r *Rotator) pruneMonthly(now time.Time) error {
	names, err := listBackups(r.monthlyDir)
	if err != nil {
		return err
	}
	cutoff := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).
		AddDate(0, -keepMonthlyMos, 0)
	for _, name := range names {
		month, err := parseMonthly(name)
		if err != nil {
			return err
		}
		if !month.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(r.monthlyDir, name)); err != nil {
			return apperr.Wrap(apperr.ErrIOFailure, "removing expired monthly backup", err)
		}
	}
	return nil
}

// listBackups returns regular file names in a tier directory. Hidden files
// (including leftover temp files) are skipped; everything else must parse as
// a retention key downstream.
func listBackups(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIOFailure, "listing backup directory", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Retention keys are exact-format; a filename that does not parse indicates
// external tampering and stops rotation rather than silently dropping data.

func parseDaily(name string) (time.Time, error) {
	stem, ok := strings.CutSuffix(name, backupExt)
	if !ok {
		return time.Time{}, apperr.New(apperr.ErrInvalidFormat, "unexpected daily backup name: "+name)
	}
	t, err := time.ParseInLocation("2006-01-02", stem, time.Local)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.ErrInvalidFormat, "unexpected daily backup name: "+name, err)
	}
	return t, nil
}

func parseWeekly(name string) (time.Time, error) {
	stem, ok := strings.CutSuffix(name, backupExt)
	if !ok {
		return time.Time{}, apperr.New(apperr.ErrInvalidFormat, "unexpected weekly backup name: "+name)
	}
	var year, week int
	if _, err := fmt.Sscanf(stem, "%4d-W%2d", &year, &week); err != nil {
		return time.Time{}, apperr.Wrap(apperr.ErrInvalidFormat, "unexpected weekly backup name: "+name, err)
	}
	if week < 1 || week > 53 || fmt.Sprintf("%04d-W%02d", year, week) != stem {
		return time.Time{}, apperr.New(apperr.ErrInvalidFormat, "unexpected weekly backup name: "+name)
	}
	return isoWeekStart(year, week), nil
}

func parseMonthly(name string) (time.Time, error) {
	stem, ok := strings.CutSuffix(name, backupExt)
	if !ok {
		return time.Time{}, apperr.New(apperr.ErrInvalidFormat, "unexpected monthly backup name: "+name)
	}
	t, err := time.ParseInLocation("2006-01", stem, time.Local)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.ErrInvalidFormat, "unexpected monthly backup name: "+name, err)
	}
	return t, nil
}

// isoWeekStart returns the Monday of the given ISO week. January 4th is
// always inside week 1.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, time.Local)
	daysSinceMonday := (int(jan4.Weekday()) + 6) % 7
	week1Monday := jan4.AddDate(0, 0, -daysSinceMonday)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

// atomicCopy copies src over dst via a temp file in dst's directory plus a
// rename, preserving src's modification time. The temp file is removed on
// any failure.
func atomicCopy(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "stating backup source", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "opening backup source", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".inkleaf-*.tmp")
	if err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "creating backup temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.ErrIOFailure, "copying backup", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.ErrIOFailure, "syncing backup", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.ErrIOFailure, "closing backup temp file", err)
	}
	if err := os.Chtimes(tmpPath, time.Now(), info.ModTime()); err != nil {
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.ErrIOFailure, "preserving backup mtime", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.ErrIOFailure, "renaming backup", err)
	}
	return nil
}
