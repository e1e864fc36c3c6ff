package agent

import (
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forge/internal/config"
	"github.com/fyrsmithlabs/forge/internal/logging"
)

// Registry holds the configured adapters keyed by agent name. Agentic
// capability is resolved once here, when adapters are constructed, so
// dispatch never probes types at runtime.
type Registry struct {
	adapters map[string]Adapter
	agentic  map[string]bool
	names    []string
}

// NewRegistry builds adapters for every enabled agent entry. Entries
// with an unknown kind are skipped; config validation reports them
// before a registry is ever built.
func NewRegistry(agents map[string]config.AgentConfig, log *logging.Logger) *Registry {
	if log == nil {
		log = logging.NewNop()
	}
	reg := &Registry{
		adapters: make(map[string]Adapter),
		agentic:  make(map[string]bool),
	}

	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := agents[name]
		if !cfg.Enabled {
			continue
		}
		adapter := buildAdapter(name, cfg, log)
		if adapter == nil {
			log.Warn(nil, "skipping agent with unknown kind",
				zap.String("agent", name),
				zap.String("kind", string(cfg.Kind)),
			)
			continue
		}
		reg.adapters[name] = adapter
		_, reg.agentic[name] = Agentic(adapter)
		reg.names = append(reg.names, name)
	}
	return reg
}

func buildAdapter(name string, cfg config.AgentConfig, log *logging.Logger) Adapter {
	switch cfg.Kind {
	case config.KindClaude:
		return NewClaude(ClaudeOptions{
			Name:            name,
			Command:         cfg.Command,
			Model:           cfg.Model,
			MaxBudgetUSD:    cfg.MaxBudgetUSD,
			SkipPermissions: cfg.SkipPermissions,
			ExtraArgs:       cfg.ExtraArgs,
		}, log)

	case config.KindGemini:
		g := NewGemini(GeminiOptions{
			Name:      name,
			Command:   cfg.Command,
			Model:     cfg.Model,
			ExtraArgs: cfg.ExtraArgs,
		}, log)
		if cfg.FallbackToAPI {
			g.WithFallback(NewAntigravity(AntigravityOptions{
				Name:  name + "-api",
				Model: cfg.Model,
			}, log))
		}
		return g

	case config.KindCopilot:
		return NewCopilot(CopilotOptions{
			Name:      name,
			Command:   cfg.Command,
			ExtraArgs: cfg.ExtraArgs,
		}, log)

	case config.KindAntigravity:
		return NewAntigravity(AntigravityOptions{
			Name:  name,
			Model: cfg.Model,
		}, log)
	}
	return nil
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns all registered agent names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// CanWrite reports whether the named agent writes files natively.
func (r *Registry) CanWrite(name string) bool {
	return r.agentic[name]
}

// Availability probes every registered adapter and returns name to
// availability, for doctor-style reporting.
func (r *Registry) Availability() map[string]bool {
	out := make(map[string]bool, len(r.adapters))
	for name, adapter := range r.adapters {
		out[name] = adapter.Available()
	}
	return out
}

// FirstAvailable returns the first available agent in sorted-name order,
// or "" when none are.
func (r *Registry) FirstAvailable() string {
	for _, name := range r.names {
		if r.adapters[name].Available() {
			return name
		}
	}
	return ""
}
