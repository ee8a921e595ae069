package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/knights-analytics/hugot/pipelines"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/kinstory/pkg/types"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `Sure! {"a":{"b":2}} Hope that helps.`, `{"a":{"b":2}}`},
		{"brace in string", `{"a":"}{"}`, `{"a":"}{"}`},
		{"escaped quote", `{"a":"say \"}\""}`, `{"a":"say \"}\""}`},
		{"no object", `nothing here`, `nothing here`},
		{"unterminated", `{"a":1`, `{"a":1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}

func TestParseMentions(t *testing.T) {
	got, err := parseMentions(`Here you go:
{"entities":[{"name":" Alice ","type":"person"},{"name":"Paris","type":"location"},{"name":"","type":"person"},{"name":"ACME","type":"organization"}]}`)
	require.NoError(t, err)
	assert.Equal(t, []types.Mention{
		{Text: "Alice", Label: types.LabelPerson},
		{Text: "Paris", Label: types.LabelLocation},
		{Text: "ACME", Label: "organization"},
	}, got)

	_, err = parseMentions("I could not find any")
	assert.Error(t, err)
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, types.LabelPerson, normalizeLabel("B-PER"))
	assert.Equal(t, types.LabelPerson, normalizeLabel("I-PER"))
	assert.Equal(t, types.LabelPerson, normalizeLabel("PERSON"))
	assert.Equal(t, types.LabelLocation, normalizeLabel("B-LOC"))
	assert.Equal(t, "MISC", normalizeLabel("I-MISC"))
	assert.Equal(t, "B-", normalizeLabel("B-"))
}

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeGenerator) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestLLMExtractor(t *testing.T) {
	gen := &fakeGenerator{reply: `{"entities":[{"name":"John Smith","type":"person"}]}`}
	e := NewLLMExtractor(gen, nil)

	got, err := e.Extract(context.Background(), "John Smith went home.")
	require.NoError(t, err)
	assert.Equal(t, []types.Mention{{Text: "John Smith", Label: types.LabelPerson}}, got)
	assert.Contains(t, gen.prompt, "John Smith went home.")

	gen.prompt = ""
	got, err = e.Extract(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, gen.prompt, "blank text never reaches the model")

	gen.err = errors.New("model offline")
	_, err = e.Extract(context.Background(), "text")
	assert.ErrorContains(t, err, "model offline")
}

func TestOllamaClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tiny", req.Model)
		assert.False(t, req.Stream)
		_ = json.NewEncoder(w).Encode(generateResponse{Response: `{"entities":[]}`, Done: true})
	}))
	defer srv.Close()

	c := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "tiny", Timeout: time.Second}, nil)
	out, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, `{"entities":[]}`, out)
	assert.Equal(t, "tiny", c.Model())
}

func TestOllamaClientOpensCircuit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	breaker := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute}, nil)
	c := NewOllamaClient(OllamaConfig{BaseURL: srv.URL}, breaker)

	for i := 0; i < 2; i++ {
		_, err := c.Complete(context.Background(), "x")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	_, err := c.Complete(context.Background(), "x")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "open", breaker.State())
}

func TestCircuitBreakerCancelledContext(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := cb.Execute(ctx, func() (string, error) {
		called = true
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, "closed", cb.State())
}

func TestOpenAIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"entities\":[{\"name\":\"Ann\",\"type\":\"person\"}]}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Timeout: time.Second}, nil)
	got, err := NewLLMExtractor(c, nil).Extract(context.Background(), "Ann laughed.")
	require.NoError(t, err)
	assert.Equal(t, []types.Mention{{Text: "Ann", Label: types.LabelPerson}}, got)
}

type fakeNER struct {
	out *pipelines.TokenClassificationOutput
	err error
}

func (f fakeNER) RunPipeline([]string) (*pipelines.TokenClassificationOutput, error) {
	return f.out, f.err
}

func TestHugotExtractor(t *testing.T) {
	h := &HugotExtractor{ner: fakeNER{out: &pipelines.TokenClassificationOutput{
		Entities: [][]pipelines.Entity{{
			{Entity: "PER", Word: "John Smith ", Score: 0.98},
			{Entity: "LOC", Word: "Boston", Score: 0.91},
			{Entity: "PER", Word: " ", Score: 0.5},
		}},
	}}}

	got, err := h.Extract(context.Background(), "John Smith moved to Boston.")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "John Smith", got[0].Text)
	assert.Equal(t, types.LabelPerson, got[0].Label)
	assert.Equal(t, types.LabelLocation, got[1].Label)
	assert.NoError(t, h.Close())

	h.ner = fakeNER{err: errors.New("bad input")}
	_, err = h.Extract(context.Background(), "x")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	e, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, e)

	e, err = New(Config{Provider: ProviderOllama, BaseURL: "http://localhost:1"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LLMExtractor{}, e)

	_, err = New(Config{Provider: ProviderOpenAI}, nil)
	assert.Error(t, err)

	_, err = New(Config{Provider: "gpt-by-carrier-pigeon"}, nil)
	assert.Error(t, err)
}
