package retriever

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/changerisk/internal/model"
)

// vocabEmbedder is a deterministic bag-of-words embedder: one dimension per
// vocabulary word, counting occurrences.
type vocabEmbedder struct {
	vocab []string
	calls atomic.Int32
	fixed map[string][]float32
	err   error
}

func newVocabEmbedder(words ...string) *vocabEmbedder {
	return &vocabEmbedder{vocab: words, fixed: map[string][]float32{}}
}

func (v *vocabEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v.calls.Add(1)
	if v.err != nil {
		return nil, v.err
	}
	if vec, ok := v.fixed[text]; ok {
		return vec, nil
	}
	vec := make([]float32, len(v.vocab))
	for _, word := range strings.Fields(strings.ToLower(text)) {
		for i, w := range v.vocab {
			if w == word {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (v *vocabEmbedder) ModelName() string { return "vocab" }

func loginRecords() []model.ChangeRecord {
	return []model.ChangeRecord{
		{ID: "CR1", Subject: "Fix login bug", Description: "Null pointer on login"},
		{ID: "CR2", Subject: "Add logging", Description: "Add request logging"},
	}
}

func loginEmbedder() *vocabEmbedder {
	return newVocabEmbedder("fix", "login", "bug", "null", "pointer", "add", "logging", "request", "crash", "npe", "during")
}

func ids(items []model.SimilarChange) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Record.ID)
	}
	return out
}

func TestTopK_LoginExample(t *testing.T) {
	idx, err := Build(context.Background(), loginEmbedder(), loginRecords(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())
	require.Equal(t, 11, idx.Dimension())

	change := model.ChangeRecord{Subject: "Fix login crash", Description: "NPE during login"}
	res, err := idx.TopK(context.Background(), change, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"CR1"}, ids(res))
	require.Equal(t, "Fix login bug", res[0].Record.Subject)
	require.Greater(t, res[0].Score, 0.0)
	require.LessOrEqual(t, res[0].Score, 1.0)
}

func TestTopK_Deterministic(t *testing.T) {
	idx, err := Build(context.Background(), loginEmbedder(), loginRecords(), 1)
	require.NoError(t, err)
	change := model.ChangeRecord{Subject: "Add request", Description: "fix logging"}
	first, err := idx.TopK(context.Background(), change, 2)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := idx.TopK(context.Background(), change, 2)
		require.NoError(t, err)
		require.Equal(t, ids(first), ids(again))
	}
}

func TestTopK_TiesKeepTableOrder(t *testing.T) {
	emb := newVocabEmbedder("a", "b")
	records := []model.ChangeRecord{
		{ID: "Z", Subject: "b", Description: ""},
		{ID: "Y", Subject: "a", Description: ""},
		{ID: "X", Subject: "a", Description: ""},
		{ID: "W", Subject: "a", Description: ""},
	}
	idx, err := Build(context.Background(), emb, records, 4)
	require.NoError(t, err)
	res, err := idx.TopK(context.Background(), model.ChangeRecord{Subject: "a", Description: ""}, 4)
	require.NoError(t, err)
	require.Equal(t, []string{"Y", "X", "W", "Z"}, ids(res))
}

func TestTopK_KLargerThanTable(t *testing.T) {
	idx, err := Build(context.Background(), loginEmbedder(), loginRecords(), 1)
	require.NoError(t, err)
	res, err := idx.TopK(context.Background(), model.ChangeRecord{Subject: "Add logging", Description: "request"}, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"CR2", "CR1"}, ids(res))
	require.GreaterOrEqual(t, res[0].Score, res[1].Score)
}

func TestTopK_EmptyTable(t *testing.T) {
	emb := loginEmbedder()
	idx, err := Build(context.Background(), emb, nil, 1)
	require.NoError(t, err)
	for _, k := range []int{1, 3, 100} {
		res, err := idx.TopK(context.Background(), model.ChangeRecord{Subject: "x", Description: "y"}, k)
		require.NoError(t, err)
		require.NotNil(t, res)
		require.Empty(t, res)
	}
	require.Equal(t, int32(0), emb.calls.Load())
}

func TestTopK_InvalidK(t *testing.T) {
	idx, err := Build(context.Background(), loginEmbedder(), loginRecords(), 1)
	require.NoError(t, err)
	_, err = idx.TopK(context.Background(), model.ChangeRecord{Subject: "x"}, 0)
	require.ErrorIs(t, err, ErrInvalidK)
}

func TestTopK_DegenerateQuery(t *testing.T) {
	idx, err := Build(context.Background(), loginEmbedder(), loginRecords(), 1)
	require.NoError(t, err)
	_, err = idx.TopK(context.Background(), model.ChangeRecord{Subject: "unknown", Description: "words"}, 1)
	var degErr *DegenerateVectorError
	require.ErrorAs(t, err, &degErr)
	require.Equal(t, "", degErr.RecordID)
}

func TestBuild_DegenerateRecord(t *testing.T) {
	records := append(loginRecords(), model.ChangeRecord{ID: "CR3", Subject: "nothing", Description: "known"})
	_, err := Build(context.Background(), loginEmbedder(), records, 2)
	var degErr *DegenerateVectorError
	require.ErrorAs(t, err, &degErr)
	require.Equal(t, "CR3", degErr.RecordID)
}

func TestBuild_DimensionMismatch(t *testing.T) {
	emb := loginEmbedder()
	emb.fixed["Add logging Add request logging"] = []float32{1, 2, 3}
	_, err := Build(context.Background(), emb, loginRecords(), 1)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBuild_EmbedderFailure(t *testing.T) {
	emb := loginEmbedder()
	emb.err = errors.New("provider down")
	_, err := Build(context.Background(), emb, loginRecords(), 2)
	require.ErrorContains(t, err, "provider down")
}

func TestRank_QueryDimensionMismatch(t *testing.T) {
	idx, err := Build(context.Background(), loginEmbedder(), loginRecords(), 1)
	require.NoError(t, err)
	_, err = idx.Rank([]float32{1, 0}, 1)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCosine(t *testing.T) {
	score := func(a, b []float32) float64 {
		return cosine(a, b, norm(a), norm(b))
	}
	require.InDelta(t, 1.0, score([]float32{1, 0}, []float32{1, 0}), 1e-9)
	require.InDelta(t, -1.0, score([]float32{1, 0}, []float32{-2, 0}), 1e-9)
	require.InDelta(t, 0.0, score([]float32{1, 0}, []float32{0, 3}), 1e-9)
	require.LessOrEqual(t, score([]float32{0.1, 0.2, 0.3}, []float32{0.1, 0.2, 0.3}), 1.0)
}
