package match

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"seiso/internal/authority"
	"seiso/internal/bibbi"
)

// CandidateProvider produces a candidate sequence for a query. The sequence
// is consumed at most once and only as far as the first accepted match.
type CandidateProvider interface {
	Candidates(ctx context.Context, query string) (*authority.Candidates, error)
}

// Engine runs the strategy list against candidate providers.
type Engine struct {
	providers  map[string]CandidateProvider
	strategies []Strategy
	logger     *slog.Logger
}

// Option customizes the engine.
type Option func(*Engine)

// WithStrategies overrides the default strategy order.
func WithStrategies(strategies []Strategy) Option {
	return func(e *Engine) {
		if len(strategies) > 0 {
			e.strategies = strategies
		}
	}
}

// NewEngine wires the candidate providers into an engine running the
// default strategies.
func NewEngine(almaProvider, viafProvider CandidateProvider, logger *slog.Logger, opts ...Option) *Engine {
	engine := &Engine{
		providers: map[string]CandidateProvider{
			ProviderAlma: almaProvider,
			ProviderViaf: viafProvider,
		},
		strategies: DefaultStrategies(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(engine)
	}
	if engine.logger == nil {
		engine.logger = slog.Default()
	}
	return engine
}

// MatchPerson tries every strategy in order over every catalogued item of
// the record. The first registry-backed match is returned immediately; a
// cluster-only match is kept aside and returned only if no strategy finds a
// registry-backed one. A nil match with a nil error means no match.
func (e *Engine) MatchPerson(ctx context.Context, person *bibbi.Record) (*Match, error) {
	var clusterMatch *Match

	for _, strategy := range e.strategies {
		provider, ok := e.providers[strategy.Provider]
		if !ok || provider == nil {
			return nil, fmt.Errorf("strategy %s references unknown provider %s", strategy.Name, strategy.Provider)
		}
		matcher, ok := matchers[strategy.Matcher]
		if !ok {
			return nil, fmt.Errorf("strategy %s references unknown matcher %s", strategy.Name, strategy.Matcher)
		}
		for _, item := range person.Items {
			if strategy.Matcher == MatcherISBN && strings.TrimSpace(item.ISBN) == "" {
				continue
			}
			query := buildQuery(strategy.Query, person, item)
			e.logger.Debug("checking item",
				slog.String("strategy", strategy.Name),
				slog.String("record_id", person.ID()),
				slog.String("isbn", item.ISBN),
				slog.String("query", query))

			candidates, err := provider.Candidates(ctx, query)
			if err != nil {
				return nil, err
			}
			for {
				candidate, ok, err := candidates.Next()
				if err != nil {
					return nil, err
				}
				if !ok {
					break
				}
				match, ok := matcher(person, item, candidate, strategy)
				if !ok {
					continue
				}
				if match.Target.RegistryBacked() {
					e.logger.Debug("registry-backed match",
						slog.String("strategy", strategy.Name),
						slog.String("record_id", person.ID()),
						slog.String("target_id", match.Target.ID))
					return &match, nil
				}
				if clusterMatch == nil {
					kept := match
					clusterMatch = &kept
				}
			}
		}
	}
	return clusterMatch, nil
}
