package credentials

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/VenkatGGG/site-sherpa/internal/logging"
)

// Store persists credential sets per domain. Implementations encrypt values
// at rest.
type Store interface {
	Save(ctx context.Context, domain string, creds map[string]string) error
	Get(ctx context.Context, domain string) (map[string]string, bool, error)
}

type Source string

const (
	SourceNone      Source = "none"
	SourceSupplied  Source = "supplied"
	SourceExtracted Source = "extracted"
	SourceMerged    Source = "merged"
	SourceStored    Source = "stored"
)

// Resolved is the outcome of credential resolution for one request.
type Resolved struct {
	Set    Set
	Source Source
}

// Provided reports whether the request itself carried credentials, either
// typed in the query or supplied through the popup.
func (r Resolved) Provided() bool {
	switch r.Source {
	case SourceSupplied, SourceExtracted, SourceMerged:
		return len(r.Set) > 0
	default:
		return false
	}
}

func (r Resolved) Available() bool {
	return len(r.Set) > 0
}

type Resolver struct {
	store   Store
	timeout time.Duration
	logger  *zap.Logger
}

func NewResolver(store Store, timeout time.Duration, logger *zap.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{store: store, timeout: timeout, logger: logging.OrNop(logger)}
}

// Resolve merges popup-supplied and extracted credentials, supplied values
// winning per field. Labels the request leaves out are filled from the stored
// set before the result is persisted for domain. An empty merge falls back to
// the stored set unchanged. Store failures never fail resolution.
func (r *Resolver) Resolve(ctx context.Context, domain string, supplied map[string]string, normalized string) Resolved {
	extracted := Extract(normalized).Clean()
	given := Set(supplied).Clean()

	merged := make(Set, len(extracted)+len(given))
	for label, value := range extracted {
		merged[label] = value
	}
	for label, value := range given {
		merged[label] = value
	}

	domain = strings.TrimSpace(domain)
	if len(merged) > 0 {
		for label, value := range r.lookup(ctx, domain) {
			if _, ok := merged[label]; !ok {
				merged[label] = value
			}
		}
		r.persist(ctx, domain, merged)
		return Resolved{Set: merged, Source: mergeSource(len(extracted) > 0, len(given) > 0)}
	}

	stored := r.lookup(ctx, domain)
	if len(stored) == 0 {
		return Resolved{Set: Set{}, Source: SourceNone}
	}
	return Resolved{Set: stored, Source: SourceStored}
}

func (r *Resolver) persist(ctx context.Context, domain string, creds Set) {
	if r.store == nil || domain == "" {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.store.Save(callCtx, domain, creds); err != nil {
		r.logger.Warn("credential save failed",
			zap.String("domain", domain),
			zap.Strings("labels", creds.Labels()),
			zap.Error(err),
		)
		return
	}
	r.logger.Info("credentials saved", zap.String("domain", domain), zap.Strings("labels", creds.Labels()))
}

func (r *Resolver) lookup(ctx context.Context, domain string) Set {
	if r.store == nil || domain == "" {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	found, ok, err := r.store.Get(callCtx, domain)
	if err != nil {
		r.logger.Warn("credential lookup failed", zap.String("domain", domain), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return Set(found).Clean()
}

func mergeSource(extracted, supplied bool) Source {
	switch {
	case extracted && supplied:
		return SourceMerged
	case supplied:
		return SourceSupplied
	case extracted:
		return SourceExtracted
	default:
		return SourceNone
	}
}
