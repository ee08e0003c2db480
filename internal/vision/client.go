// ABOUTME: Client for OpenAI-compatible vision chat-completion endpoints.
// ABOUTME: Sends one meal photo, streams the reply, and returns the validated analysis.
package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/harperreed/deficit/internal/logger"
	"github.com/harperreed/deficit/internal/metrics"
	"github.com/harperreed/deficit/internal/models"
	"github.com/harperreed/deficit/internal/stream"
)

var (
	// ErrRequestFailed means the endpoint answered with a non-2xx status.
	ErrRequestFailed = errors.New("analysis request failed")
	// ErrMissingCredentials means the AI config lacks a key, base URL or model.
	ErrMissingCredentials = errors.New("missing AI credentials")
)

const (
	// DefaultTimeout bounds a whole analysis including the streamed body.
	DefaultTimeout = 5 * time.Minute

	temperature = 0.1
	maxTokens   = 800

	// errorBodyLimit caps how much of a failed response is read for its message.
	errorBodyLimit = 64 * 1024
)

const systemPrompt = `You are a nutritionist. Identify every dish in the photo.
For each dish give its name, an estimated weight such as "150g", calories in kcal,
and protein, carbs and fat in grams. Reply with JSON only, shaped as:
{"foods":[{"name":"Rice","estimatedWeight":"200g","calories":260,
"macros":{"protein":5,"carbs":58,"fat":0.5},"tips":"optional"}],"tips":"optional overall advice"}`

const userInstruction = "Analyze the food in this image and return the result as JSON."

// Client talks to the configured endpoint.
type Client struct {
	http *resty.Client
	log  *logger.Logger
}

// New creates a client. A non-positive timeout selects DefaultTimeout.
func New(timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		http: resty.New().SetTimeout(timeout),
		log:  log,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// ImageURL returns image as a data URL, wrapping bare base64 as JPEG.
func ImageURL(image string) string {
	if strings.HasPrefix(image, "data:") {
		return image
	}
	return "data:image/jpeg;base64," + image
}

func newChatRequest(model, image string) chatRequest {
	return chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: ImageURL(image)}},
				{Type: "text", Text: userInstruction},
			}},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      true,
	}
}

// Analyze sends image to the endpoint described by cfg and returns the parsed
// result. Cancellation of ctx aborts the request and the stream read and is
// returned as ctx.Err(), never wrapped in ErrRequestFailed or
// stream.ErrStreamUnreadable.
func (c *Client) Analyze(ctx context.Context, cfg models.AIConfig, image string) (*models.AnalysisResult, error) {
	start := time.Now()
	result, err := c.analyze(ctx, cfg, image)

	outcome := "ok"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "canceled"
	case err != nil:
		outcome = "error"
	}
	metrics.Analysis(outcome, time.Since(start))

	return result, err
}

func (c *Client) analyze(ctx context.Context, cfg models.AIConfig, image string) (*models.AnalysisResult, error) {
	if cfg.APIKey == "" || cfg.BaseURL == "" || cfg.Model == "" {
		return nil, ErrMissingCredentials
	}
	if image == "" {
		return nil, fmt.Errorf("%w: no image data", models.ErrValidation)
	}

	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
	c.log.Debug().Str("endpoint", endpoint).Str("model", cfg.Model).Msg("starting analysis")

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetBody(newChatRequest(cfg.Model, image)).
		SetDoNotParseResponse(true).
		Post(endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", stream.ErrStreamUnreadable, err)
	}

	body := resp.RawBody()
	if body != nil {
		defer body.Close()
	}

	if status := resp.StatusCode(); status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, requestError(status, body)
	}

	text, err := stream.Decode(ctx, body)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", models.ErrValidation)
	}

	result, err := models.ParseAnalysis(text)
	if err != nil {
		c.log.Warn().Err(err).Int("bytes", len(text)).Msg("analysis reply failed validation")
		return nil, err
	}

	c.log.Debug().Int("foods", len(result.Foods)).Msg("analysis complete")
	return result, nil
}

// requestError extracts a human message from an error body, trying
// "message", a string "error", then "error.message".
func requestError(status int, body io.Reader) error {
	var raw []byte
	if body != nil {
		raw, _ = io.ReadAll(io.LimitReader(body, errorBodyLimit))
	}

	msg := ""
	if gjson.ValidBytes(raw) {
		doc := gjson.ParseBytes(raw)
		for _, path := range []string{"message", "error", "error.message"} {
			v := doc.Get(path)
			if v.Type == gjson.String && v.Str != "" {
				msg = v.Str
				break
			}
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	return fmt.Errorf("%w: HTTP %d: %s", ErrRequestFailed, status, msg)
}
