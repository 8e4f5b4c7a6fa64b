package jig

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/event"
	"github.com/matthewbaird/jigtrack/internal/logger"
)

// ErrInvalidDomain is returned for an unknown domain or an unusable value
// list.
var ErrInvalidDomain = errors.New("invalid domain")

// DomainStore reads and rewrites enumerated-domain tables.
type DomainStore interface {
	LoadDomain(ctx context.Context, name string) ([]string, error)
	Replace(ctx context.Context, name string, values []string) error
}

// Domains manages the enumerated domains. The running schema keeps the
// values it was resolved with, so a saved change takes effect after a
// restart.
type Domains struct {
	store    DomainStore
	defaults map[string][]string
	names    []string
	rec      event.Recorder
	log      *zap.Logger
	restart  bool
}

// NewDomains returns a manager for the named domains. defaults supplies the
// values Reset writes.
func NewDomains(store DomainStore, names []string, defaults map[string][]string, rec event.Recorder, log *zap.Logger) *Domains {
	if log == nil {
		log = zap.NewNop()
	}
	return &Domains{store: store, defaults: defaults, names: names, rec: rec, log: log}
}

// Names returns the managed domain names.
func (d *Domains) Names() []string { return d.names }

// RestartRequired reports whether a saved change is not yet in effect.
func (d *Domains) RestartRequired() bool { return d.restart }

// List returns the stored values of domain name in order.
func (d *Domains) List(ctx context.Context, name string) ([]string, error) {
	if !slices.Contains(d.names, name) {
		return nil, fmt.Errorf("%w: unknown domain %q", ErrInvalidDomain, name)
	}
	return d.store.LoadDomain(ctx, name)
}

// Replace rewrites domain name with values in the given order. Values are
// trimmed; blank or duplicate values are rejected. It reports whether the
// stored list changed.
func (d *Domains) Replace(ctx context.Context, user, name string, values []string) (bool, error) {
	return d.replace(ctx, user, name, values, false)
}

// Reset restores domain name to its default values.
func (d *Domains) Reset(ctx context.Context, user, name string) (bool, error) {
	values, ok := d.defaults[name]
	if !ok {
		return false, fmt.Errorf("%w: no defaults for %q", ErrInvalidDomain, name)
	}
	return d.replace(ctx, user, name, values, true)
}

func (d *Domains) replace(ctx context.Context, user, name string, values []string, reset bool) (bool, error) {
	log := logger.WithUser(d.log, user).With(zap.String("op", "replace_domain"), zap.String("domain", name))

	clean, err := cleanValues(values)
	if err != nil {
		return false, err
	}
	current, err := d.List(ctx, name)
	if err != nil {
		return false, err
	}
	if slices.Equal(current, clean) {
		return false, nil
	}
	if err := d.store.Replace(ctx, name, clean); err != nil {
		log.Error("saving domain failed", zap.Error(err))
		return false, err
	}
	d.restart = true
	log.Info("domain saved", zap.Strings("values", clean), zap.Bool("reset", reset))

	if d.rec != nil {
		evt := event.NewDomainReplaced(user, event.DomainReplacedPayload{Domain: name, Values: clean, Reset: reset})
		if err := d.rec.Record(ctx, evt); err != nil {
			log.Warn("event recording failed", zap.String("event_type", evt.EventType), zap.Error(err))
		}
	}
	return true, nil
}

func cleanValues(values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: at least one value is required", ErrInvalidDomain)
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, fmt.Errorf("%w: blank value", ErrInvalidDomain)
		}
		if seen[v] {
			return nil, fmt.Errorf("%w: duplicate value %q", ErrInvalidDomain, v)
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}
