// Package teacher is a client for an OpenAI-compatible chat-completions
// endpoint that answers questions about ciphers. It is optional: without
// an API key the client reports itself disabled and every call fails with
// ErrTeacherDisabled. Nothing else in cypherify depends on it.
package teacher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cypherify/internal/config"
	"cypherify/internal/logging"
	"cypherify/internal/tracing"
)

// Errors returned by the client.
var (
	ErrTeacherDisabled = errors.New("teacher: not configured; set CYPHERIFY_TEACHER_API_KEY or OPENAI_API_KEY")
	ErrEmptyQuestion   = errors.New("teacher: question is empty")
	ErrNoAnswer        = errors.New("teacher: response contained no answer")
)

// SystemPrompt frames every conversation.
const SystemPrompt = `You are a cryptography teacher helping students learn about classical ciphers and password security inside an educational tool called cypherify.

Explain concepts clearly and simply. Answer questions about specific ciphers (Caesar, ROT13, affine, Vigenère, substitution, rail fence, Morse, Bacon), the mathematics behind them, their history, and their weaknesses. When frequency analysis or index of coincidence is involved, show a small worked example.

Keep answers to two to four short paragraphs. Everything in the tool is for learning; if asked how to protect real data, recommend established libraries and modern algorithms.`

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Question is a student question with optional context.
type Question struct {
	Text string `json:"question"`
	// CipherContext names what the student is looking at, e.g. "vigenere".
	CipherContext string `json:"cipher_context,omitempty"`
	// History holds earlier turns, oldest first. Only the most recent
	// turns, up to the configured window, are sent.
	History []Message `json:"history,omitempty"`
}

// Answer is the teacher's reply.
type Answer struct {
	Text  string `json:"answer"`
	Model string `json:"model"`
	// History is the trimmed history plus this exchange, ready to be sent
	// back with the next question.
	History          []Message `json:"history"`
	PromptTokens     int       `json:"prompt_tokens,omitempty"`
	CompletionTokens int       `json:"completion_tokens,omitempty"`
}

// Options configures a Client.
type Options struct {
	Endpoint      string
	Model         string
	APIKey        string
	HistoryWindow int
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
}

// OptionsFromConfig converts the teacher configuration section.
func OptionsFromConfig(c config.TeacherConfig) Options {
	return Options{
		Endpoint:      c.Endpoint,
		Model:         c.Model,
		APIKey:        c.APIKey,
		HistoryWindow: c.HistoryWindow,
		MaxTokens:     c.MaxTokens,
		Temperature:   c.Temperature,
		Timeout:       time.Duration(c.TimeoutSec) * time.Second,
	}
}

// Client talks to the chat-completions endpoint.
type Client struct {
	opts   Options
	client *http.Client
	logger *logging.Logger
}

// New creates a client. A nil logger selects the default logger.
func New(opts Options, logger *logging.Logger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HistoryWindow < 0 {
		opts.HistoryWindow = 0
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger.WithComponent("teacher"),
	}
}

// Enabled reports whether an API key is configured. Placeholder keys such
// as "your_api_key_here" count as missing.
func (c *Client) Enabled() bool {
	key := strings.TrimSpace(c.opts.APIKey)
	return key != "" && !strings.HasPrefix(key, "your_") && c.opts.Endpoint != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.opts.Model
}

// Ask sends a question and returns the answer.
func (c *Client) Ask(ctx context.Context, q Question) (*Answer, error) {
	if !c.Enabled() {
		return nil, ErrTeacherDisabled
	}
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, ErrEmptyQuestion
	}
	if q.CipherContext != "" {
		text = fmt.Sprintf("[Context: the student is learning about %s]\n\n%s", q.CipherContext, text)
	}

	history := c.window(q.History)
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: SystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: text})

	resp, err := c.complete(ctx, messages, c.opts.MaxTokens, c.opts.Temperature)
	if err != nil {
		return nil, err
	}

	ans := &Answer{
		Text:             resp.text,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	ans.History = append(ans.History, history...)
	ans.History = append(ans.History,
		Message{Role: RoleUser, Content: text},
		Message{Role: RoleAssistant, Content: resp.text},
	)
	c.logger.WithContext(ctx).Info("teacher answered",
		"model", resp.Model,
		"history", len(history),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return ans, nil
}

// Hint asks for a short practical tip about encrypting or decrypting with
// a family.
func (c *Client) Hint(ctx context.Context, family, direction string) (*Answer, error) {
	q := fmt.Sprintf("Give me a helpful tip for %s with the %s cipher. Keep it brief and practical.", gerund(direction), family)
	return c.Ask(ctx, Question{Text: q, CipherContext: family})
}

func gerund(direction string) string {
	switch strings.ToLower(direction) {
	case "decrypt":
		return "decrypting"
	case "encrypt":
		return "encrypting"
	default:
		return direction
	}
}

// window keeps the most recent turns and drops system messages supplied
// by the caller.
func (c *Client) window(history []Message) []Message {
	var kept []Message
	for _, m := range history {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			kept = append(kept, m)
		}
	}
	if len(kept) > c.opts.HistoryWindow {
		kept = kept[len(kept)-c.opts.HistoryWindow:]
	}
	return kept
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`

	text string
}

// APIError is a non-success response from the endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("teacher: endpoint returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("teacher: endpoint returned HTTP %d: %s", e.StatusCode, e.Message)
}

func (c *Client) complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (*chatResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "teacher.chat",
		tracing.WithSpanKind(tracing.SpanKindClient),
		tracing.WithAttributes(tracing.Attr("model", c.opts.Model), tracing.Attr("messages", len(messages))))
	defer span.End()

	cr, err := c.post(ctx, messages, maxTokens, temperature)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		tracing.Attr("prompt_tokens", cr.Usage.PromptTokens),
		tracing.Attr("completion_tokens", cr.Usage.CompletionTokens),
	)
	return cr, nil
}

func (c *Client) post(ctx context.Context, messages []Message, maxTokens int, temperature float64) (*chatResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("teacher: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("teacher: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.opts.APIKey))
	if id := logging.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	tracing.Inject(ctx, req.Header.Set)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("teacher: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("teacher: read response: %w", err)
	}

	var cr chatResponse
	decodeErr := json.Unmarshal(data, &cr)
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr == nil && cr.Error != nil {
			apiErr.Message = cr.Error.Message
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("teacher: decode response: %w", decodeErr)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return nil, ErrNoAnswer
	}
	cr.text = strings.TrimSpace(cr.Choices[0].Message.Content)
	if cr.Model == "" {
		cr.Model = c.opts.Model
	}
	return &cr, nil
}
