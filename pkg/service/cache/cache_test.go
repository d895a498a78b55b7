package cache_test

import (
	"testing"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/db4dd/db4dd/pkg/repository/memory"
	"github.com/db4dd/db4dd/pkg/service/cache"
	"github.com/m-mizutani/gt"
)

func baseRequest() model.LLMRequest {
	return model.LLMRequest{
		Stage:        types.StageExtract,
		SystemPrompt: "system",
		Prompt:       "会議の発言を要約してください。",
		Temperature:  0.3,
		MaxTokens:    400,
		Schema:       "extraction",
	}
}

func TestFingerprint(t *testing.T) {
	base := cache.Fingerprint("gpt-4o-mini", baseRequest())
	gt.Number(t, len(base)).Equal(64)
	gt.String(t, cache.Fingerprint("gpt-4o-mini", baseRequest())).Equal(base)

	t.Run("line endings and outer whitespace are ignored", func(t *testing.T) {
		req := baseRequest()
		req.Prompt = "\r\n  会議の発言を要約してください。  \r\n"
		gt.String(t, cache.Fingerprint("gpt-4o-mini", req)).Equal(base)
	})

	t.Run("stage is not part of the fingerprint", func(t *testing.T) {
		req := baseRequest()
		req.Stage = types.StageMini
		gt.String(t, cache.Fingerprint("gpt-4o-mini", req)).Equal(base)
	})

	variants := map[string]func(*model.LLMRequest){
		"prompt":      func(r *model.LLMRequest) { r.Prompt += "追加" },
		"system":      func(r *model.LLMRequest) { r.SystemPrompt = "other" },
		"temperature": func(r *model.LLMRequest) { r.Temperature = 0.7 },
		"max tokens":  func(r *model.LLMRequest) { r.MaxTokens = 800 },
		"schema":      func(r *model.LLMRequest) { r.Schema = "mini_summary" },
	}
	for name, mutate := range variants {
		t.Run(name+" changes the fingerprint", func(t *testing.T) {
			req := baseRequest()
			mutate(&req)
			gt.String(t, cache.Fingerprint("gpt-4o-mini", req)).NotEqual(base)
		})
	}

	t.Run("model changes the fingerprint", func(t *testing.T) {
		gt.String(t, cache.Fingerprint("gemini-2.5-flash", baseRequest())).NotEqual(base)
	})
}

func TestLookupAndStore(t *testing.T) {
	svc := cache.New(memory.New().Cache())
	fp := cache.Fingerprint("m", baseRequest())

	_, ok, err := svc.Lookup(t.Context(), fp)
	gt.NoError(t, err)
	gt.Bool(t, ok).False()

	gt.NoError(t, svc.Store(t.Context(), fp, "m", `{"a":1}`))
	gt.NoError(t, svc.Store(t.Context(), fp, "m", `{"a":2}`))

	got, ok, err := svc.Lookup(t.Context(), fp)
	gt.NoError(t, err)
	gt.Bool(t, ok).True()
	gt.String(t, got).Equal(`{"a":1}`)

	stats := svc.Stats()
	gt.Number(t, stats.Hits).Equal(int64(1))
	gt.Number(t, stats.Misses).Equal(int64(1))
	gt.Number(t, stats.Stores).Equal(int64(1))
}

func TestDisabledCache(t *testing.T) {
	repo := memory.New().Cache()
	svc := cache.New(repo, cache.WithDisabled())

	gt.NoError(t, svc.Store(t.Context(), "fp", "m", "resp"))
	_, ok, err := svc.Lookup(t.Context(), "fp")
	gt.NoError(t, err)
	gt.Bool(t, ok).False()

	n, err := repo.Count(t.Context())
	gt.NoError(t, err)
	gt.Number(t, n).Equal(0)

	nilSvc := cache.New(nil)
	gt.Bool(t, nilSvc.Enabled()).False()
	_, ok, err = nilSvc.Lookup(t.Context(), "fp")
	gt.NoError(t, err)
	gt.Bool(t, ok).False()
}

func TestEvictOlderThan(t *testing.T) {
	repo := memory.New().Cache()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	current := now.Add(-10 * 24 * time.Hour)
	svc := cache.New(repo, cache.WithClock(func() time.Time { return current }))

	gt.NoError(t, svc.Store(t.Context(), "old", "m", "a"))
	current = now
	gt.NoError(t, svc.Store(t.Context(), "new", "m", "b"))

	n, err := svc.EvictOlderThan(t.Context(), 7*24*time.Hour)
	gt.NoError(t, err)
	gt.Number(t, n).Equal(1)

	_, ok, err := svc.Lookup(t.Context(), "new")
	gt.NoError(t, err)
	gt.Bool(t, ok).True()

	_, err = svc.EvictOlderThan(t.Context(), 0)
	gt.Error(t, err)
}
