// Package settings persists the styling thresholds in an INI file.
//
// The file has three sections:
//
//	[color]  serious, warning
//	[date]   checkwarning
//	[count]  usedserious, usedwarning, checkserious, checkwarning
//
// It is read once at startup and rewritten wholesale on every update.
package settings

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/style"
)

// INI keys.
const (
	KeyColorSerious      = "color.serious"
	KeyColorWarning      = "color.warning"
	KeyDateCheckWarning  = "date.checkwarning"
	KeyCountUsedSerious  = "count.usedserious"
	KeyCountUsedWarning  = "count.usedwarning"
	KeyCountCheckSerious = "count.checkserious"
	KeyCountCheckWarning = "count.checkwarning"
)

// ErrInvalid is returned by Update for thresholds that cannot be applied.
var ErrInvalid = errors.New("invalid settings")

var colorPattern = regexp.MustCompile(`^#?[A-Za-z0-9]{1,32}$`)

// Store holds the current thresholds and the file they persist to.
type Store struct {
	path string
	log  *zap.Logger

	mu      sync.RWMutex
	current style.Thresholds
}

// Load reads path. A missing file is created with the default thresholds;
// unreadable values fall back to their defaults with a warning.
func Load(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{path: path, log: log, current: style.DefaultThresholds()}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Info("settings file missing, writing defaults", zap.String("path", path))
		return s, s.write(s.current)
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}
	s.current = s.decode(v)
	return s, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("ini")
	d := style.DefaultThresholds()
	v.SetDefault(KeyColorSerious, d.CriticalColor)
	v.SetDefault(KeyColorWarning, d.WarningColor)
	v.SetDefault(KeyDateCheckWarning, d.CalibrationLeadDays)
	v.SetDefault(KeyCountUsedSerious, d.Usage.Critical)
	v.SetDefault(KeyCountUsedWarning, d.Usage.Warning)
	v.SetDefault(KeyCountCheckSerious, d.Cycle.Critical)
	v.SetDefault(KeyCountCheckWarning, d.Cycle.Warning)
	return v
}

func (s *Store) decode(v *viper.Viper) style.Thresholds {
	d := style.DefaultThresholds()
	num := func(key string, def int) int {
		raw := v.GetString(key)
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.log.Warn("invalid setting, using default",
				zap.String("key", key), zap.String("value", raw), zap.Int("default", def))
			return def
		}
		return n
	}
	return style.Thresholds{
		CriticalColor:       v.GetString(KeyColorSerious),
		WarningColor:        v.GetString(KeyColorWarning),
		CalibrationLeadDays: num(KeyDateCheckWarning, d.CalibrationLeadDays),
		Usage: style.Cutoffs{
			Critical: num(KeyCountUsedSerious, d.Usage.Critical),
			Warning:  num(KeyCountUsedWarning, d.Usage.Warning),
		},
		Cycle: style.Cutoffs{
			Critical: num(KeyCountCheckSerious, d.Cycle.Critical),
			Warning:  num(KeyCountCheckWarning, d.Cycle.Warning),
		},
	}
}

// Current returns the thresholds in effect.
func (s *Store) Current() style.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Path returns the settings file path.
func (s *Store) Path() string { return s.path }

// Validate checks t can be rendered and evaluated.
func Validate(t style.Thresholds) error {
	if !colorPattern.MatchString(t.CriticalColor) {
		return fmt.Errorf("%w: serious color %q", ErrInvalid, t.CriticalColor)
	}
	if !colorPattern.MatchString(t.WarningColor) {
		return fmt.Errorf("%w: warning color %q", ErrInvalid, t.WarningColor)
	}
	for name, n := range map[string]int{
		KeyDateCheckWarning:  t.CalibrationLeadDays,
		KeyCountUsedSerious:  t.Usage.Critical,
		KeyCountUsedWarning:  t.Usage.Warning,
		KeyCountCheckSerious: t.Cycle.Critical,
		KeyCountCheckWarning: t.Cycle.Warning,
	} {
		if n < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalid, name)
		}
	}
	return nil
}

// Update validates t, rewrites the file and applies t immediately.
func (s *Store) Update(t style.Thresholds) error {
	if err := Validate(t); err != nil {
		return err
	}
	if err := s.write(t); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
	s.log.Info("settings saved", zap.String("op", "settings_update"), zap.String("path", s.path))
	return nil
}

func (s *Store) write(t style.Thresholds) error {
	v := viper.New()
	v.SetConfigType("ini")
	v.Set(KeyColorSerious, t.CriticalColor)
	v.Set(KeyColorWarning, t.WarningColor)
	v.Set(KeyDateCheckWarning, strconv.Itoa(t.CalibrationLeadDays))
	v.Set(KeyCountUsedSerious, strconv.Itoa(t.Usage.Critical))
	v.Set(KeyCountUsedWarning, strconv.Itoa(t.Usage.Warning))
	v.Set(KeyCountCheckSerious, strconv.Itoa(t.Cycle.Critical))
	v.Set(KeyCountCheckWarning, strconv.Itoa(t.Cycle.Warning))
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("writing settings %s: %w", s.path, err)
	}
	return nil
}
