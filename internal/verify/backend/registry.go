package backend

import (
	"net/http"
	"sort"
)

// RegistryConfig carries the subset of the engine configuration that
// decides which backends are enabled and in what order.
type RegistryConfig struct {
	OpenAlexKey         string
	S2APIKey            string
	DblpOfflinePath     string
	OpenAlexOfflinePath string
	DisabledDBs         map[string]bool
	LocalPoolSize       int
}

// Build constructs the ordered, enabled backend list for a run. client is
// the one shared *http.Client every HTTP backend uses. Offline backends
// that fail to open return an error immediately — an unreadable offline
// DB is a hard error, not a silent skip.
func Build(client *http.Client, cfg RegistryConfig) ([]Backend, func() error, error) {
	pool := NewBlockingPool(cfg.LocalPoolSize)
	var closers []func() error
	closeAll := func() error {
		var first error
		for _, c := range closers {
			if err := c(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	type candidate struct {
		name string
		make func() (Backend, error)
	}

	// Semantic Scholar and OpenAlex online both serve keyless requests at a
	// lower quota; an absent API key is carried through as an empty string
	// rather than disabling the backend (see DESIGN.md's note on this
	// registry for why "enables"/"requires API key" is read as "raises
	// quota for").
	candidates := []candidate{
		{"CrossRef", func() (Backend, error) { return &CrossRef{Client: client}, nil }},
		{"arXiv", func() (Backend, error) { return &ArXiv{Client: client}, nil }},
		{"Semantic Scholar", func() (Backend, error) {
			return &SemanticScholar{Client: client, APIKey: cfg.S2APIKey}, nil
		}},
	}

	if cfg.OpenAlexOfflinePath != "" {
		candidates = append(candidates, candidate{"OpenAlex", func() (Backend, error) {
			return OpenOpenAlexOffline(cfg.OpenAlexOfflinePath, pool)
		}})
	} else {
		candidates = append(candidates, candidate{"OpenAlex", func() (Backend, error) {
			return &OpenAlex{Client: client, APIKey: cfg.OpenAlexKey}, nil
		}})
	}

	if cfg.DblpOfflinePath != "" {
		candidates = append(candidates, candidate{"DBLP", func() (Backend, error) {
			return OpenDblpOffline(cfg.DblpOfflinePath, pool)
		}})
	} else {
		candidates = append(candidates, candidate{"DBLP", func() (Backend, error) {
			return &DblpOnline{Client: client}, nil
		}})
	}

	var backends []Backend
	for _, c := range candidates {
		if cfg.DisabledDBs[c.name] {
			continue
		}
		b, err := c.make()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		if closer, ok := b.(interface{ Close() error }); ok {
			closers = append(closers, closer.Close)
		}
		backends = append(backends, b)
	}

	// Deterministic order regardless of candidate construction order above,
	// so progress-event streams and tests are stable across runs.
	sort.SliceStable(backends, func(i, j int) bool {
		return backendOrder(backends[i].Name()) < backendOrder(backends[j].Name())
	})

	return backends, closeAll, nil
}

var preferredOrder = []string{"CrossRef", "arXiv", "OpenAlex", "Semantic Scholar", "DBLP"}

func backendOrder(name string) int {
	for i, n := range preferredOrder {
		if n == name {
			return i
		}
	}
	return len(preferredOrder)
}
