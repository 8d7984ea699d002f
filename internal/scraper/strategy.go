package scraper

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"jetpreview/internal/browser"
	"jetpreview/internal/domain"
)

// Mode is how a strategy obtains the page.
type Mode int

const (
	// ModeFetch issues a plain HTTP GET and parses the body.
	ModeFetch Mode = iota + 1
	// ModeRender drives a pooled browser and parses the rendered source.
	ModeRender
	// ModeAPI calls an external metadata API.
	ModeAPI
)

func (m Mode) String() string {
	switch m {
	case ModeFetch:
		return "fetch"
	case ModeRender:
		return "render"
	case ModeAPI:
		return "api"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// FallbackPriority is reserved for the catch-all strategy.
const FallbackPriority = math.MaxInt

// Strategy is one site integration. Lower Priority values are tried first.
type Strategy struct {
	Name     string
	Priority int
	Mode     Mode
	Matches  func(url string) bool

	// Rewrite optionally maps the URL before fetching or rendering.
	Rewrite func(url string) string
	// Wait is the DOM condition a ModeRender strategy waits for.
	Wait browser.Condition
	// Call performs a ModeAPI extraction.
	Call func(ctx context.Context, url string) (domain.Metadata, error)
}

func (s Strategy) target(url string) string {
	if s.Rewrite == nil {
		return url
	}
	return s.Rewrite(url)
}

// Contains matches URLs containing any of the substrings (case-sensitive).
func Contains(substrs ...string) func(string) bool {
	return func(url string) bool {
		for _, sub := range substrs {
			if strings.Contains(url, sub) {
				return true
			}
		}
		return false
	}
}

// Always matches every URL.
func Always(string) bool {
	return true
}

// Fallback is the catch-all plain fetch strategy.
func Fallback() Strategy {
	return Strategy{
		Name:     "fallback",
		Priority: FallbackPriority,
		Mode:     ModeFetch,
		Matches:  Always,
	}
}

// Registry holds the strategies in selection order. It is read-only after
// construction.
type Registry struct {
	strategies []Strategy
}

// NewRegistry orders strategies by priority, keeping declaration order for
// equal priorities. It requires exactly one strategy with FallbackPriority.
func NewRegistry(strategies ...Strategy) (*Registry, error) {
	sorted := slices.Clone(strategies)
	slices.SortStableFunc(sorted, func(a, b Strategy) int {
		return cmp.Compare(a.Priority, b.Priority)
	})

	fallbacks := 0
	for _, s := range sorted {
		if err := s.validate(); err != nil {
			return nil, err
		}
		if s.Priority == FallbackPriority {
			fallbacks++
		}
	}
	if fallbacks != 1 {
		return nil, fmt.Errorf("registry needs exactly one fallback strategy, got %d", fallbacks)
	}
	return &Registry{strategies: sorted}, nil
}

func (s Strategy) validate() error {
	if s.Name == "" {
		return errors.New("strategy without a name")
	}
	if s.Matches == nil {
		return fmt.Errorf("strategy %s: missing match predicate", s.Name)
	}
	switch s.Mode {
	case ModeFetch, ModeRender:
	case ModeAPI:
		if s.Call == nil {
			return fmt.Errorf("strategy %s: api mode without a call", s.Name)
		}
	default:
		return fmt.Errorf("strategy %s: unknown mode %s", s.Name, s.Mode)
	}
	return nil
}

// Select returns the first strategy matching url. The fallback guarantees a
// result.
func (r *Registry) Select(url string) Strategy {
	for _, s := range r.strategies {
		if s.Matches(url) {
			return s
		}
	}
	return r.strategies[len(r.strategies)-1]
}

// Strategies returns the strategies in selection order.
func (r *Registry) Strategies() []Strategy {
	return slices.Clone(r.strategies)
}
