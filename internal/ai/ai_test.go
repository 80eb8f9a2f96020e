package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	calls   atomic.Int32
	results []error
	text    string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.results) && s.results[n] != nil {
		return "", s.results[n]
	}
	return s.text, nil
}

type stubProvider struct {
	text string
	vec  []float32
	err  error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	return s.text, s.err
}

func (s *stubProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	return s.vec, s.err
}

func TestGenerator_WrapsProviderErrors(t *testing.T) {
	gen := NewGenerator(&stubProvider{err: errors.New("boom")}, "m1")
	_, err := gen.Generate(context.Background(), "hi")
	var extErr *ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	require.Equal(t, "generate", extErr.Op)
	require.Equal(t, "stub", extErr.Provider)
	require.Equal(t, "m1", extErr.Model)

	gen = NewGenerator(&stubProvider{text: "   "}, "m1")
	_, err = gen.Generate(context.Background(), "hi")
	require.ErrorIs(t, err, ErrEmptyResponse)

	gen = NewGenerator(&stubProvider{text: " ok \n"}, "m1")
	res, err := gen.Generate(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "ok", res)
}

func TestEmbedder_RejectsEmptyVector(t *testing.T) {
	emb := NewEmbedder(&stubProvider{}, "e1")
	_, err := emb.Embed(context.Background(), "text")
	require.ErrorIs(t, err, ErrEmptyResponse)
	require.Equal(t, "stub:e1", emb.ModelName())

	emb = NewEmbedder(&stubProvider{vec: []float32{1, 2}}, "e1")
	vec, err := emb.Embed(context.Background(), "text")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, vec)
}

func TestRetryGenerator_RecoversFromTransientFailures(t *testing.T) {
	transient := &ExternalServiceError{Op: "generate", Provider: "stub", Err: errors.New("503")}
	stub := &stubGenerator{results: []error{transient, transient}, text: "analysis"}
	gen := NewRetryGenerator(stub, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
	res, err := gen.Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "analysis", res)
	require.Equal(t, int32(3), stub.calls.Load())
}

func TestRetryGenerator_GivesUpAfterMaxAttempts(t *testing.T) {
	transient := errors.New("503")
	stub := &stubGenerator{results: []error{transient, transient, transient, transient}}
	gen := NewRetryGenerator(stub, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})
	_, err := gen.Generate(context.Background(), "p")
	require.ErrorIs(t, err, transient)
	require.Equal(t, int32(3), stub.calls.Load())
}

func TestRetryGenerator_DoesNotRetryUnavailable(t *testing.T) {
	stub := &stubGenerator{results: []error{&ExternalServiceError{Op: "generate", Err: ErrUnavailable}}}
	gen := NewRetryGenerator(stub, RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond})
	_, err := gen.Generate(context.Background(), "p")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, int32(1), stub.calls.Load())
}

func TestRetryGenerator_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stub := &stubGenerator{results: []error{errors.New("503"), errors.New("503")}}
	gen := NewRetryGenerator(stub, RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour})
	_, err := gen.Generate(ctx, "p")
	require.Error(t, err)
	require.Equal(t, int32(1), stub.calls.Load())
}

func TestNewRetryGenerator_SingleAttemptIsPassthrough(t *testing.T) {
	stub := &stubGenerator{}
	require.Same(t, IGenerator(stub), NewRetryGenerator(stub, RetryConfig{MaxAttempts: 1}))
}

func TestGroupGenerator_FallsBack(t *testing.T) {
	first := &stubGenerator{results: []error{errors.New("down")}}
	second := &stubGenerator{text: "from second"}
	gen := NewGroupGenerator([]GeneratorEntry{
		{Name: "first", Generator: first},
		{Name: "second", Generator: second},
	})
	res, err := gen.Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "from second", res)
	require.Equal(t, int32(1), first.calls.Load())
}

func TestManager_AppliesTimeout(t *testing.T) {
	slow := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	m := NewManager(slow, nil, ManagerConfig{Timeout: 1})
	start := time.Now()
	_, err := m.Generate(context.Background(), "p")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)

	_, err = m.Embed(context.Background(), "text")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, "", m.ModelName())
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestOpenAIProvider_AgainstTestServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/chat/completions":
			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Messages, 1)
			require.Equal(t, "user", req.Messages[0].Role)
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" risk: low "}}]}`))
		case "/v1/embeddings":
			_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,0.25]}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p, err := NewProvider("openai", map[string]interface{}{"api_key": "k", "base_url": srv.URL + "/v1/"})
	require.NoError(t, err)
	text, err := p.Generate(context.Background(), "gpt", "prompt")
	require.NoError(t, err)
	require.Equal(t, "risk: low", text)

	ep, err := NewEmbedProvider("openai", map[string]interface{}{"api_key": "k", "base_url": srv.URL + "/v1"})
	require.NoError(t, err)
	vec, err := ep.Embed(context.Background(), "emb", "text", TaskSemanticSimilarity)
	require.NoError(t, err)
	require.Equal(t, []float32{0.5, 0.25}, vec)
}

func TestOpenAIProvider_HTTPErrorAndMissingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewProvider("openai", map[string]interface{}{"api_key": "k", "base_url": srv.URL})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "gpt", "prompt")
	require.ErrorContains(t, err, "503")

	p, err = NewProvider("openai", map[string]interface{}{})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "gpt", "prompt")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestGroqProvider_AgainstTestServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/openai/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Potential for error: No"}}]}`))
	}))
	defer srv.Close()

	p, err := NewProvider("groq", map[string]interface{}{"api_key": "k", "base_url": srv.URL + "/openai/v1"})
	require.NoError(t, err)
	text, err := p.Generate(context.Background(), "llama3-8b-8192", "prompt")
	require.NoError(t, err)
	require.Equal(t, "Potential for error: No", text)
}

func TestRegistry_UnknownProviders(t *testing.T) {
	_, err := NewProvider("", nil)
	require.Error(t, err)
	_, err = NewProvider("nope", nil)
	require.Error(t, err)
	_, err = NewEmbedProvider("openrouter", nil)
	require.Error(t, err)
	_, err = NewEmbedProvider("ollama", nil)
	require.NoError(t, err)
}
