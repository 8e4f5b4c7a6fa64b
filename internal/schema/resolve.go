package schema

import (
	"context"
	"errors"
	"fmt"
)

// Domain names and the member values seeded when their tables are missing.
const (
	DomainJigType      = "JigType"
	DomainJigUseStatus = "JigUseStatus"
)

// Use-status codes.
const (
	StatusUnused       = "UNUSE"
	StatusInUse        = "USING"
	StatusError        = "ERROR"
	StatusToBeScrapped = "TO_BE_SCRAPPED"
)

// DefaultDomains are the values written by a bootstrap.
var DefaultDomains = map[string][]string{
	DomainJigType:      {"server", "pc", "adapter", "amz"},
	DomainJigUseStatus: {StatusUnused, StatusInUse, StatusError, StatusToBeScrapped},
}

// DomainSource loads the ordered values of a named domain.
type DomainSource interface {
	LoadDomain(ctx context.Context, name string) ([]string, error)
}

// Bootstrapper recreates the named domain tables with their default values.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, names []string) error
}

var errEmptyDomain = errors.New("domain has no values")

// Resolve merges the domains referenced by static into a new schema. When
// loading fails the domains are bootstrapped and loading is retried exactly
// once; a second failure is reported as ErrConfiguration.
func Resolve(ctx context.Context, static *Schema, src DomainSource, boot Bootstrapper) (*Schema, error) {
	names := static.DomainNames()
	domains, err := loadDomains(ctx, src, names)
	if err == nil {
		return static.WithDomains(domains...), nil
	}
	if boot == nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if berr := boot.Bootstrap(ctx, names); berr != nil {
		return nil, fmt.Errorf("%w: bootstrapping domains after %v: %v", ErrConfiguration, err, berr)
	}
	domains, err = loadDomains(ctx, src, names)
	if err != nil {
		return nil, fmt.Errorf("%w: loading domains after bootstrap: %v", ErrConfiguration, err)
	}
	return static.WithDomains(domains...), nil
}

func loadDomains(ctx context.Context, src DomainSource, names []string) ([]EnumeratedDomain, error) {
	out := make([]EnumeratedDomain, 0, len(names))
	for _, name := range names {
		values, err := src.LoadDomain(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("loading domain %s: %w", name, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("loading domain %s: %w", name, errEmptyDomain)
		}
		out = append(out, EnumeratedDomain{Name: name, Values: values})
	}
	return out, nil
}
