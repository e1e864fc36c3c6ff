package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	genai "google.golang.org/genai"

	"github.com/fyrsmithlabs/forge/internal/logging"
)

// geminiPricing is USD per million tokens, input and output.
var geminiPricing = map[string][2]float64{
	"gemini-2.5-pro":   {1.25, 10.0},
	"gemini-2.5-flash": {0.15, 0.60},
	"gemini-2.0-flash": {0.10, 0.40},
}

const (
	antigravityDefaultModel = "gemini-2.5-pro"
	antigravityMaxTokens    = 65536
	antigravityTemperature  = 0.7
	antigravityMaxRetries   = 3
	antigravityBaseBackoff  = 300 * time.Millisecond
)

// Free-tier Gemini API allows 15 requests per minute; stay under it.
const (
	antigravityRate  = rate.Limit(15.0 / 60.0)
	antigravityBurst = 2
)

// Antigravity calls the Gemini API directly through the genai SDK,
// bypassing any CLI. It gives full control over model, temperature, and
// token limits, and tracks usage for cost estimates.
type Antigravity struct {
	name        string
	display     string
	model       string
	apiKey      string
	maxTokens   int32
	temperature float32
	limiter     *rate.Limiter
	log         *logging.Logger

	mu     sync.Mutex
	client *genai.Client
}

// AntigravityOptions configures a direct Gemini API adapter.
type AntigravityOptions struct {
	Name  string
	Model string

	// APIKey overrides the GOOGLE_API_KEY / GEMINI_API_KEY environment
	// variables.
	APIKey string
}

// NewAntigravity returns an adapter backed by the Gemini API.
func NewAntigravity(opts AntigravityOptions, log *logging.Logger) *Antigravity {
	name := opts.Name
	if name == "" {
		name = "antigravity"
	}
	model := opts.Model
	if model == "" {
		model = antigravityDefaultModel
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Antigravity{
		name:        name,
		display:     "Antigravity (" + model + ")",
		model:       model,
		apiKey:      opts.APIKey,
		maxTokens:   antigravityMaxTokens,
		temperature: antigravityTemperature,
		limiter:     rate.NewLimiter(antigravityRate, antigravityBurst),
		log:         log,
	}
}

func (a *Antigravity) Name() string        { return a.name }
func (a *Antigravity) DisplayName() string { return a.display }

func (a *Antigravity) resolveKey() string {
	if a.apiKey != "" {
		return a.apiKey
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GEMINI_API_KEY")
}

// Available reports whether an API key is configured.
func (a *Antigravity) Available() bool {
	return a.resolveKey() != ""
}

func (a *Antigravity) getClient(ctx context.Context) (*genai.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return a.client, nil
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  a.resolveKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	a.client = cli
	return cli, nil
}

// Execute sends one prompt to the Gemini API with retries and rate
// limiting, and returns the answer with token usage and estimated cost.
func (a *Antigravity) Execute(ctx context.Context, task Task) Outcome {
	if !a.Available() {
		return unavailableOutcome(a.name, a.display)
	}

	limit := task.Deadline()
	cctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	start := time.Now()

	if err := a.limiter.Wait(cctx); err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return timeoutOutcome(a.name, limit, time.Since(start))
		}
		return failedOutcome(a.name, "rate limiter: "+err.Error(), time.Since(start))
	}

	client, err := a.getClient(cctx)
	if err != nil {
		return failedOutcome(a.name, err.Error(), time.Since(start))
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: a.maxTokens,
		Temperature:     genai.Ptr(a.temperature),
	}
	if task.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: task.SystemPrompt}},
		}
	}

	a.log.Debug(ctx, "dispatching antigravity",
		zap.String("agent", a.name),
		zap.String("model", a.model),
		zap.Int("prompt_chars", len(task.Prompt)),
		zap.Duration("timeout", limit),
	)

	var resp *genai.GenerateContentResponse
	var lastErr error
	for attempt := 0; attempt < antigravityMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := antigravityBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-cctx.Done():
			}
		}
		if cctx.Err() != nil {
			lastErr = cctx.Err()
			break
		}

		resp, lastErr = client.Models.GenerateContent(cctx, a.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: task.Prompt}}}},
			cfg,
		)
		if lastErr == nil {
			break
		}
	}

	elapsed := time.Since(start)
	if lastErr != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return timeoutOutcome(a.name, limit, elapsed)
		}
		return failedOutcome(a.name, lastErr.Error(), elapsed)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return failedOutcome(a.name, "empty response from model", elapsed)
	}
	text := resp.Candidates[0].Content.Parts[0].Text

	out := Outcome{
		Agent:    a.name,
		Output:   text,
		Status:   StatusSuccess,
		Duration: elapsed,
		Model:    a.model,
	}
	if usage := resp.UsageMetadata; usage != nil {
		out.InputTokens = int(usage.PromptTokenCount)
		out.OutputTokens = int(usage.CandidatesTokenCount)
		if out.InputTokens > 0 && out.OutputTokens > 0 {
			out.CostUSD = estimateGeminiCost(a.model, out.InputTokens, out.OutputTokens)
		}
	}
	return out
}

// estimateGeminiCost converts token counts to USD for known models.
// Unknown models fall back to flash pricing.
func estimateGeminiCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := geminiPricing[model]
	if !ok {
		pricing = geminiPricing["gemini-2.5-flash"]
	}
	cost := float64(inputTokens)/1e6*pricing[0] + float64(outputTokens)/1e6*pricing[1]
	return math.Round(cost*1e6) / 1e6
}
