package normalizer

import (
	"sort"
	"strings"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/domain/ports/adapter"
)

// Registry resolves the normalizer for a provider path segment.
type Registry struct {
	byName   map[string]adapter.Normalizer
	fallback string
}

func NewRegistry(fallback string, ns ...adapter.Normalizer) *Registry {
	r := &Registry{byName: make(map[string]adapter.Normalizer, len(ns)), fallback: fallback}
	for _, n := range ns {
		r.byName[n.Provider()] = n
	}
	return r
}

// FromConfig registers every built-in provider.
func FromConfig(cfg config.ProviderConfig) *Registry {
	return NewRegistry(cfg.Default,
		NewGenericNormalizer(),
		NewStripeNormalizer(cfg.StripeWebhookSecret),
		NewZarinPalNormalizer(cfg.ZarinPalWebhookSecret),
	)
}

// Lookup returns the normalizer for provider; an empty name selects the default.
func (r *Registry) Lookup(provider string) (adapter.Normalizer, bool) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = r.fallback
	}
	n, ok := r.byName[provider]
	return n, ok
}

func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
