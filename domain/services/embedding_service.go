package services

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"nodespace-core/domain/config"
	"nodespace-core/domain/core/entities"
	"nodespace-core/domain/core/valueobjects"
	"nodespace-core/domain/strategies"
	pkgerrors "nodespace-core/pkg/errors"
	"nodespace-core/pkg/observability"
)

const embeddingService = "embedding-service"

// ModelInfo describes an embedding model
type ModelInfo struct {
	Name       string
	Version    string
	Dimensions int
}

// EmbeddingModel is the NLP engine as seen by this service.
// Implementations must be safe for concurrent use.
type EmbeddingModel interface {
	Info() ModelInfo
	Embed(ctx context.Context, text string) (valueobjects.Vector, error)
}

// EmbeddingService computes embedding tiers bottom-up. It never stores
// anything: each call returns a new EmbeddingSet for the caller to attach.
type EmbeddingService struct {
	cfg     *config.DomainConfig
	logger  *zap.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewEmbeddingService creates an embedding service. Metrics and tracer are
// optional.
func NewEmbeddingService(cfg *config.DomainConfig, logger *zap.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *EmbeddingService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &EmbeddingService{
		cfg:     cfg,
		logger:  observability.OrNop(logger),
		metrics: metrics,
		tracer:  tracer,
	}
}

// ComputeIndividual embeds the node's own content. It is always legal.
func (s *EmbeddingService) ComputeIndividual(ctx context.Context, node *entities.Node, model EmbeddingModel) (entities.EmbeddingSet, error) {
	if node == nil {
		return entities.EmbeddingSet{}, pkgerrors.RequiredField(embeddingService, "node", "ComputeIndividual")
	}
	window, err := strategies.NewRuleBasedStrategy(s.cfg).Assemble(ctx, node, nil, entities.TierIndividual)
	if err != nil {
		return entities.EmbeddingSet{}, err
	}
	return s.compute(ctx, node, window, model)
}

// ComputeContextual embeds the node with its immediate relations, as chosen
// by strategy. The individual tier must already exist.
func (s *EmbeddingService) ComputeContextual(ctx context.Context, node *entities.Node, view strategies.AncestryView, strategy strategies.ContextStrategy, model EmbeddingModel) (entities.EmbeddingSet, error) {
	return s.computeWithStrategy(ctx, node, view, strategy, model, entities.TierContextual)
}

// ComputeHierarchical embeds the node with its ancestor path, as chosen by
// strategy. The individual and contextual tiers must already exist.
func (s *EmbeddingService) ComputeHierarchical(ctx context.Context, node *entities.Node, view strategies.AncestryView, strategy strategies.ContextStrategy, model EmbeddingModel) (entities.EmbeddingSet, error) {
	return s.computeWithStrategy(ctx, node, view, strategy, model, entities.TierHierarchical)
}

// ComputeAll computes the tiers a node is missing, bottom-up, and
// recomputes stale ones
func (s *EmbeddingService) ComputeAll(ctx context.Context, node *entities.Node, view strategies.AncestryView, strategy strategies.ContextStrategy, model EmbeddingModel) (entities.EmbeddingSet, error) {
	if node == nil {
		return entities.EmbeddingSet{}, pkgerrors.RequiredField(embeddingService, "node", "ComputeAll")
	}

	current := node
	for _, tier := range entities.Tiers() {
		if e, ok := current.Embeddings().Get(tier); ok && !e.Metrics.Stale {
			continue
		}
		var (
			set entities.EmbeddingSet
			err error
		)
		if tier == entities.TierIndividual {
			set, err = s.ComputeIndividual(ctx, current, model)
		} else {
			set, err = s.computeWithStrategy(ctx, current, view, strategy, model, tier)
		}
		if err != nil {
			return entities.EmbeddingSet{}, err
		}
		current = current.WithEmbeddings(set)
	}
	return current.Embeddings(), nil
}

func (s *EmbeddingService) computeWithStrategy(ctx context.Context, node *entities.Node, view strategies.AncestryView, strategy strategies.ContextStrategy, model EmbeddingModel, tier entities.Tier) (entities.EmbeddingSet, error) {
	if node == nil {
		return entities.EmbeddingSet{}, pkgerrors.RequiredField(embeddingService, "node", "Compute")
	}
	if strategy == nil {
		return entities.EmbeddingSet{}, pkgerrors.RequiredField(embeddingService, "strategy", "Compute")
	}
	// fail before spending a model call
	if err := requirePrerequisites(node.Embeddings(), tier); err != nil {
		return entities.EmbeddingSet{}, err
	}

	window, err := strategy.Assemble(ctx, node, view, tier)
	if err != nil {
		return entities.EmbeddingSet{}, pkgerrors.Wrap(err, embeddingService, "context assembly failed")
	}
	return s.compute(ctx, node, window, model)
}

func requirePrerequisites(set entities.EmbeddingSet, tier entities.Tier) error {
	for _, lower := range entities.Tiers() {
		if lower == tier {
			return nil
		}
		if !set.Has(lower) {
			return pkgerrors.MissingTier(embeddingService, string(tier), string(lower))
		}
	}
	return nil
}

func (s *EmbeddingService) compute(ctx context.Context, node *entities.Node, window strategies.Window, model EmbeddingModel) (entities.EmbeddingSet, error) {
	if model == nil {
		return entities.EmbeddingSet{}, pkgerrors.RequiredField(embeddingService, "model", "Compute")
	}
	info := model.Info()
	text := window.Text(s.cfg.MaxContextChars)
	strategyName := string(window.Strategy)

	start := time.Now()
	var vec valueobjects.Vector
	err := s.tracer.Trace(ctx, "Embed", map[string]string{
		"tier":  string(window.Tier),
		"model": info.Name,
	}, func(ctx context.Context) error {
		var embedErr error
		vec, embedErr = model.Embed(ctx, text)
		return embedErr
	})
	latency := time.Since(start)

	sample := observability.TierSample{
		Tier:          string(window.Tier),
		Strategy:      strategyName,
		Model:         info.Name,
		Latency:       latency,
		ContextLength: len(text),
		PathDepth:     window.PathDepth,
	}

	if err != nil {
		sample.Failed = true
		s.metrics.RecordTier(ctx, sample)
		return entities.EmbeddingSet{}, pkgerrors.ModelError(embeddingService, info.Name, err.Error()).
			WithCause(err).
			WithDetail("node_id", node.ID().String()).
			WithDetail("tier", string(window.Tier))
	}
	if err := s.checkDimensions(info, vec); err != nil {
		sample.Failed = true
		s.metrics.RecordTier(ctx, sample)
		return entities.EmbeddingSet{}, err
	}

	set, err := node.Embeddings().WithTier(window.Tier, entities.TierEmbedding{
		Vector:     vec,
		Provenance: entities.Provenance{Model: info.Name, ModelVersion: info.Version},
		Strategy:   strategyName,
		Metrics: entities.TierMetrics{
			Latency:       latency,
			ContextLength: len(text),
			PathDepth:     window.PathDepth,
		},
		ComputedAt: time.Now().UTC(),
	})
	if err != nil {
		return entities.EmbeddingSet{}, err
	}

	s.metrics.RecordTier(ctx, sample)
	s.logger.Debug("embedding computed",
		zap.String("node_id", node.ID().String()),
		zap.String("tier", string(window.Tier)),
		zap.String("strategy", strategyName),
		zap.String("model", info.Name),
		zap.Duration("latency", latency),
		zap.Int("context_length", len(text)),
		zap.Int("segments", len(window.Segments)),
	)
	return set, nil
}

func (s *EmbeddingService) checkDimensions(info ModelInfo, vec valueobjects.Vector) error {
	if vec.IsEmpty() {
		return pkgerrors.EmbeddingFailed(embeddingService, "model returned an empty vector", info.Name)
	}
	want := s.cfg.EmbeddingDimensions
	if want == 0 {
		want = info.Dimensions
	}
	if want > 0 && vec.Dimensions() != want {
		return pkgerrors.EmbeddingFailed(embeddingService,
			"expected "+strconv.Itoa(want)+" dimensions, got "+strconv.Itoa(vec.Dimensions()), info.Name)
	}
	return nil
}
