package retriever

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/changerisk/internal/ai"
	"github.com/xxxsen/changerisk/internal/model"
)

type entry struct {
	record model.ChangeRecord
	vector []float32
	norm   float64
}

// Index is the immutable table of change records and their embeddings. It is
// fully built before it is returned and never modified afterwards, so it can
// be shared by concurrent requests without locking.
type Index struct {
	embedder ai.IEmbedder
	entries  []entry
	dim      int
}

// Build embeds every record with embedder, using up to workers concurrent
// calls. The same embedder is kept for query vectors.
func Build(ctx context.Context, embedder ai.IEmbedder, records []model.ChangeRecord, workers int) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if workers <= 0 {
		workers = 1
	}
	logger := logutil.GetLogger(ctx).With(zap.String("embedding_model", embedder.ModelName()))
	start := time.Now()

	vectors := make([][]float32, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range records {
		g.Go(func() error {
			vec, err := embedder.Embed(gctx, records[i].EmbeddingText())
			if err != nil {
				return fmt.Errorf("embed record %s: %w", records[i].ID, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("build embedding index failed", zap.Error(err))
		return nil, err
	}

	idx := &Index{
		embedder: embedder,
		entries:  make([]entry, 0, len(records)),
	}
	for i, rec := range records {
		vec := vectors[i]
		if i == 0 {
			idx.dim = len(vec)
		} else if len(vec) != idx.dim {
			return nil, fmt.Errorf("%w: record %s has %d dimensions, expected %d", ErrDimensionMismatch, rec.ID, len(vec), idx.dim)
		}
		n := norm(vec)
		if n == 0 {
			return nil, &DegenerateVectorError{RecordID: rec.ID}
		}
		idx.entries = append(idx.entries, entry{record: rec, vector: vec, norm: n})
	}
	logger.Info("embedding index built",
		zap.Int("records", len(idx.entries)),
		zap.Int("dimension", idx.dim),
		zap.Duration("duration", time.Since(start)),
	)
	return idx, nil
}

func (idx *Index) Len() int {
	return len(idx.entries)
}

func (idx *Index) Dimension() int {
	return idx.dim
}

func (idx *Index) ModelName() string {
	return idx.embedder.ModelName()
}

func (idx *Index) Embed(ctx context.Context, text string) ([]float32, error) {
	return idx.embedder.Embed(ctx, text)
}

// TopK returns the min(k, Len()) records most similar to change, best first.
// Records with equal scores keep their table order.
func (idx *Index) TopK(ctx context.Context, change model.ChangeRecord, k int) ([]model.SimilarChange, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if len(idx.entries) == 0 {
		return []model.SimilarChange{}, nil
	}
	query, err := idx.Embed(ctx, change.EmbeddingText())
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return idx.Rank(query, k)
}

// Rank orders the stored records by cosine similarity to query.
func (idx *Index) Rank(query []float32, k int) ([]model.SimilarChange, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if len(idx.entries) == 0 {
		return []model.SimilarChange{}, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), idx.dim)
	}
	qn := norm(query)
	if qn == 0 {
		return nil, &DegenerateVectorError{}
	}
	scored := make([]model.SimilarChange, 0, len(idx.entries))
	for _, e := range idx.entries {
		scored = append(scored, model.SimilarChange{
			Record: e.record,
			Score:  cosine(query, e.vector, qn, e.norm),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}
