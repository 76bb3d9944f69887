package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/daskuntal75/CareerCoPilot-sub001/internal/ai"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/utils"
)

const (
	defaultModel      = "gemini-2.5-pro"
	defaultMaxRetries = 3
	retryBaseDelay    = 2 * time.Second
	logPreviewLength  = 200
)

// wait is a seam for tests to avoid real backoff delays.
var wait = utils.WaitFor

// chatSession is the subset of the genai chat used by the generator.
type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// chatCreator abstracts chat construction so tests can inject fakes.
type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	client *genai.Client
}

func (g *genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	return g.client.Chats.Create(ctx, model, config, history)
}

// Generator produces career documents through the Gemini API backend.
type Generator struct {
	chats      chatCreator
	model      string
	maxRetries int
	logger     *zap.Logger
}

// New creates a Generator configured for the Gemini API backend.
func New(ctx context.Context, apiKey, model string, maxRetries int, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		chats:      &genaiChats{client: client},
		model:      model,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Generate sends the request to Gemini and returns the produced text.
// Transient API failures are retried with linear backoff up to the configured
// attempt budget; rate-limit and quota failures surface immediately.
func (g *Generator) Generate(ctx context.Context, req ai.Request) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	userPrompt := strings.TrimSpace(req.UserPrompt)
	if userPrompt == "" {
		return "", errors.New("user prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{}
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		output, err := g.generateOnce(ctx, config, userPrompt)
		if err == nil {
			g.logger.Debug("gemini response received",
				zap.String("document_type", string(req.Type)),
				zap.String("preview", utils.TruncateForLog(output, logPreviewLength)),
			)
			return output, nil
		}

		lastErr = err

		if !ai.Retryable(err) {
			return "", err
		}

		if attempt == g.maxRetries {
			break
		}

		delay := time.Duration(attempt) * retryBaseDelay
		g.logger.Warn("gemini call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.maxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if waitErr := wait(ctx, delay); waitErr != nil {
			return "", waitErr
		}
	}

	return "", fmt.Errorf("gemini call failed after %d attempts: %w", g.maxRetries, lastErr)
}

func (g *Generator) generateOnce(ctx context.Context, config *genai.GenerateContentConfig, userPrompt string) (string, error) {
	chat, err := g.chats.Create(ctx, g.model, config, nil)
	if err != nil {
		return "", classify(err)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: userPrompt})
	if err != nil {
		return "", classify(err)
	}

	output := collectText(resp)
	if output == "" {
		return "", &ai.UpstreamError{Kind: ai.ErrorOther, Err: errors.New("gemini api returned empty response")}
	}

	return output, nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

// classify maps a raw genai error to the upstream taxonomy. 429 responses are
// never retried here: quota exhaustion needs an out-of-band fix and plain
// rate limiting must bubble up to the caller's own pacing.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ai.UpstreamError{Kind: ai.ErrorOther, Err: err}
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		// Network-level failure without an API status.
		return &ai.UpstreamError{Kind: ai.ErrorTransient, Err: err}
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if strings.Contains(strings.ToLower(apiErr.Message), "quota") {
			return &ai.UpstreamError{Kind: ai.ErrorQuotaExceeded, Err: err}
		}
		return &ai.UpstreamError{Kind: ai.ErrorRateLimited, Err: err}
	case apiErr.Code >= http.StatusInternalServerError:
		return &ai.UpstreamError{Kind: ai.ErrorTransient, Err: err}
	default:
		return &ai.UpstreamError{Kind: ai.ErrorOther, Err: err}
	}
}
