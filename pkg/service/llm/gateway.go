package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/service/cache"
	"github.com/db4dd/db4dd/pkg/service/ratelimit"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrEmptyResponse is returned when the provider answered without any text
	ErrEmptyResponse = goerr.New("LLM returned empty response")
	// ErrInvalidJSON is returned when the response is not a JSON document
	ErrInvalidJSON = goerr.New("LLM returned invalid JSON")
)

// Gateway is the single path for outbound LLM calls:
// fingerprint → cache → limiter with retry → LLM → cache store.
type Gateway struct {
	client      gollem.LLMClient
	modelName   string
	limiter     *ratelimit.Limiter
	cache       *cache.Service
	schemas     map[string]*gollem.Parameter
	callTimeout time.Duration

	group singleflight.Group

	calls     atomic.Int64
	cacheHits atomic.Int64
	shared    atomic.Int64
	failures  atomic.Int64
}

// Stats counts gateway activity since creation
type Stats struct {
	Model     string `json:"model"`
	Calls     int64  `json:"calls"`
	CacheHits int64  `json:"cache_hits"`
	Shared    int64  `json:"shared"`
	Failures  int64  `json:"failures"`
}

type Option func(*Gateway)

// WithSchema registers the JSON response schema used for requests naming it
func WithSchema(name string, schema *gollem.Parameter) Option {
	return func(g *Gateway) {
		g.schemas[name] = schema
	}
}

// WithCallTimeout bounds a single provider call; a timed out call is retried
func WithCallTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.callTimeout = d
	}
}

func New(client gollem.LLMClient, modelName string, limiter *ratelimit.Limiter, cacheSvc *cache.Service, opts ...Option) *Gateway {
	if cacheSvc == nil {
		cacheSvc = cache.New(nil)
	}
	g := &Gateway{
		client:    client,
		modelName: modelName,
		limiter:   limiter,
		cache:     cacheSvc,
		schemas:   make(map[string]*gollem.Parameter),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the response text for req. Cache hits do not touch the rate budget,
// and concurrent identical requests share one provider call.
func (g *Gateway) Generate(ctx context.Context, req model.LLMRequest) (string, error) {
	logger := logging.From(ctx)
	fp := cache.Fingerprint(g.modelName, req)

	if text, ok, err := g.cache.Lookup(ctx, fp); err != nil {
		logger.Warn("cache lookup failed, calling LLM", "error", err.Error(), "stage", req.Stage)
	} else if ok {
		g.cacheHits.Add(1)
		usageFrom(ctx).cacheHits.Add(1)
		return text, nil
	}

	// The shared call must outlive any single caller: one document giving up
	// does not fail the others waiting on the same fingerprint.
	shareCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(fp, func() (any, error) {
		var text string
		err := g.limiter.Do(shareCtx, req.EstimatedTokens(), func(ctx context.Context) error {
			g.calls.Add(1)
			usageFrom(ctx).calls.Add(1)
			out, err := g.call(ctx, req)
			if err != nil {
				return err
			}
			text = out
			return nil
		})
		if err != nil {
			return "", err
		}

		if err := g.cache.Store(shareCtx, fp, g.modelName, text); err != nil {
			logger.Warn("failed to store LLM response in cache", "error", err.Error(), "stage", req.Stage)
		}
		return text, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return "", goerr.Wrap(ctx.Err(), "LLM generation cancelled",
			goerr.V("stage", req.Stage),
			goerr.V("model", g.modelName))
	case res = <-ch:
	}

	if res.Shared {
		g.shared.Add(1)
	}
	if res.Err != nil {
		g.failures.Add(1)
		return "", goerr.Wrap(res.Err, "LLM generation failed",
			goerr.V("stage", req.Stage),
			goerr.V("model", g.modelName))
	}

	return res.Val.(string), nil
}

func (g *Gateway) call(ctx context.Context, req model.LLMRequest) (string, error) {
	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}

	opts := []gollem.SessionOption{
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
	}
	if req.SystemPrompt != "" {
		opts = append(opts, gollem.WithSessionSystemPrompt(req.SystemPrompt))
	}
	if schema, ok := g.schemas[req.Schema]; ok {
		opts = append(opts, gollem.WithSessionResponseSchema(schema))
	}

	session, err := g.client.NewSession(ctx, opts...)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	genOpts := []gollem.GenerateOption{gollem.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		genOpts = append(genOpts, gollem.WithMaxTokens(req.MaxTokens))
	}

	resp, err := session.Generate(ctx, []gollem.Input{gollem.Text(req.Prompt)}, genOpts...)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}

	text := stripCodeFence(strings.Join(resp.Texts, ""))
	if text == "" {
		return "", goerr.Wrap(fmt.Errorf("%w: %w", ErrEmptyResponse, ratelimit.ErrTransient), "no text in response")
	}
	if !json.Valid([]byte(text)) {
		return "", goerr.Wrap(fmt.Errorf("%w: %w", ErrInvalidJSON, ratelimit.ErrTransient), "response is not JSON",
			goerr.V("response", truncate(text, 200)))
	}
	return text, nil
}

// Model returns the configured model name
func (g *Gateway) Model() string {
	return g.modelName
}

// Stats returns the activity counters
func (g *Gateway) Stats() Stats {
	return Stats{
		Model:     g.modelName,
		Calls:     g.calls.Load(),
		CacheHits: g.cacheHits.Load(),
		Shared:    g.shared.Load(),
		Failures:  g.failures.Load(),
	}
}

// stripCodeFence removes a surrounding ```json fence some models add despite JSON mode
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
