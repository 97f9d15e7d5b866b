// Package provider defines the boundary to remote generative-AI services.
// Model invocation is opaque: a provider takes a prompt and returns media bytes.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/digkill/visionhub/internal/models"
)

var (
	ErrNoMedia       = errors.New("provider returned no media")
	ErrUnknownModel  = errors.New("unknown model")
	errTransientMark = errors.New("transient provider error")
)

// Media is inline generated content.
type Media struct {
	Data     []byte
	MIMEType string
}

type Request struct {
	Model       string
	Kind        models.MediaKind
	Prompt      string
	AspectRatio string
	// SourceImage is the optional reference image. SourceURL is its public
	// location for providers that only accept URLs.
	SourceImage *Media
	SourceURL   string
}

type Provider interface {
	Generate(ctx context.Context, req Request) (*Media, error)
}

// StatusError is returned when a provider answers with a non-success HTTP status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error: status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", errTransientMark, err)
}

// IsTransient reports whether a failed call may succeed when repeated.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errTransientMark) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 429 || statusErr.StatusCode >= 500
	}
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) {
		code := coded.HTTPCode()
		return code == 429 || code >= 500
	}
	return false
}

// Registry maps the model names users pick to their providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]entry
}

type entry struct {
	kind     models.MediaKind
	provider Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]entry)}
}

func (r *Registry) Register(name string, kind models.MediaKind, p Provider) {
	r.mu.Lock()
	r.providers[name] = entry{kind: kind, provider: p}
	r.mu.Unlock()
}

func (r *Registry) Lookup(name string, kind models.MediaKind) (Provider, error) {
	r.mu.RLock()
	e, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok || e.kind != kind {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return e.provider, nil
}

// Models lists registered model names of the given kind in lexical order.
func (r *Registry) Models(kind models.MediaKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, e := range r.providers {
		if e.kind == kind {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
