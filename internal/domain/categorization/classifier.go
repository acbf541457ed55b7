// Package categorization assigns a category, subcategory and confidence
// score to parsed transactions. Classification runs in two stages: an
// external model call validated against the fixed taxonomy, then a
// deterministic keyword override for yield and investment movements.
package categorization

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/rmassis/fiflow/internal/domain/taxonomy"
	"github.com/rmassis/fiflow/internal/domain/transaction"
)

// Confidence constants applied by taxonomy validation and failure fallback.
const (
	// invalidCategoryConfidence is assigned when the external classifier
	// returns a category outside the taxonomy.
	invalidCategoryConfidence = 0.3
	// invalidSubcategoryCap caps confidence when only the subcategory was
	// invalid and got corrected to the category's default.
	invalidSubcategoryCap = 0.6
	// overrideConfidence is assigned by the deterministic keyword override.
	overrideConfidence = 0.95

	// defaultCallTimeout bounds a single external classification call.
	defaultCallTimeout = 15 * time.Second
)

// Prediction is the raw output of an external classifier before taxonomy
// validation.
type Prediction struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Confidence  float64 `json:"confidence"`
}

// Classifier is the external classification capability. Implementations may
// fail on quota, auth or network errors; the service absorbs those failures
// per transaction.
type Classifier interface {
	Classify(ctx context.Context, tx transaction.Transaction) (*Prediction, error)
}

// Service runs the two-stage classification over single transactions and
// batches.
type Service struct {
	classifier Classifier
	taxonomy   *taxonomy.Taxonomy
	override   *HeuristicOverride
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     *slog.Logger
	observe    func(time.Duration)
}

// Option customizes a Service.
type Option func(*Service)

// WithCallTimeout overrides the per-call timeout for external classification.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithLimiter replaces the pacing limiter for external calls.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithLatencyObserver records the duration of each external call, failed or
// not.
func WithLatencyObserver(observe func(time.Duration)) Option {
	return func(s *Service) { s.observe = observe }
}

// NewService creates a classification service. The default limiter paces
// external calls at two per second, matching the fixed inter-call pause the
// pipeline needs to stay under provider rate limits.
func NewService(classifier Classifier, tax *taxonomy.Taxonomy, override *HeuristicOverride, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		classifier: classifier,
		taxonomy:   tax,
		override:   override,
		limiter:    rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		timeout:    defaultCallTimeout,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Classify fills Category, Subcategory, Confidence and NeedsReview on a
// single transaction. External failure never surfaces as an error; the
// transaction falls back to Other/Uncategorized with zero confidence.
func (s *Service) Classify(ctx context.Context, tx *transaction.Transaction) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	start := time.Now()
	pred, err := s.classifier.Classify(callCtx, *tx)
	cancel()
	if s.observe != nil {
		s.observe(time.Since(start))
	}

	if err != nil {
		// Context cancellation belongs to the caller, not to the fallback.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("external classification failed",
			slog.String("description", tx.Description),
			slog.Any("error", err))
		tx.Category = taxonomy.CategoryOther
		tx.Subcategory = taxonomy.SubcategoryUncategorized
		tx.SetConfidence(0)
	} else {
		s.apply(tx, pred)
	}

	s.override.Apply(tx)
	return nil
}

// ClassifyBatch classifies sequentially, preserving input order and count.
// Pacing between calls comes from the limiter; a single failed call affects
// only its own transaction.
func (s *Service) ClassifyBatch(ctx context.Context, txs []transaction.Transaction) ([]transaction.Transaction, error) {
	out := make([]transaction.Transaction, len(txs))
	for i := range txs {
		out[i] = txs[i]
		if err := s.Classify(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// apply validates a prediction against the taxonomy and writes the result.
// An unknown category collapses to Other/Uncategorized at low confidence; an
// unknown subcategory is corrected to the category's default with confidence
// capped.
func (s *Service) apply(tx *transaction.Transaction, pred *Prediction) {
	category := pred.Category
	subcategory := pred.Subcategory
	confidence := pred.Confidence

	if !s.taxonomy.IsValidCategory(category) {
		tx.Category = taxonomy.CategoryOther
		tx.Subcategory = taxonomy.SubcategoryUncategorized
		tx.SetConfidence(invalidCategoryConfidence)
		return
	}

	if !s.taxonomy.IsValidSubcategory(category, subcategory) {
		subcategory = s.taxonomy.DefaultSubcategory(category)
		if confidence > invalidSubcategoryCap {
			confidence = invalidSubcategoryCap
		}
	}

	tx.Category = category
	tx.Subcategory = subcategory
	tx.SetConfidence(confidence)
}
