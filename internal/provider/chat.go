package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	stderrors "errors"

	"github.com/Devliang24/casecraft/internal/errors"
	"github.com/Devliang24/casecraft/internal/log"
)

// chatCore is the shared transport for chat-completion style APIs. All four
// built-in providers speak this wire shape; each wraps the core with its own
// defaults and concurrency declaration.
type chatCore struct {
	name    string
	config  Config
	baseURL string
	client  *http.Client
	// extra is merged into every request payload for provider-specific
	// fields.
	extra  map[string]interface{}
	logger *log.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	Delta        chatMessage `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type chatCompletion struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage"`
	Error   *chatError   `json:"error"`
}

type chatError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func newChatCore(name string, config Config, defaultBaseURL string, extra map[string]interface{}, logger *log.Logger) *chatCore {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = log.Global()
	}
	return &chatCore{
		name:    name,
		config:  config,
		baseURL: baseURL,
		client: &http.Client{
			Transport: &http.Transport{
				MaxConnsPerHost:     maxWorkersOf(name, config),
				MaxIdleConnsPerHost: maxWorkersOf(name, config),
			},
		},
		extra:  extra,
		logger: logger.With("provider", name),
	}
}

// generate runs one generation, retrying rate-limited, transient, and
// timeout failures internally with exponential backoff.
func (c *chatCore) generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	if c.config.Stream && req.OnProgress != nil {
		return c.generateStream(ctx, req)
	}

	start := time.Now()
	tracker := newProgressTracker(req.OnProgress)
	payload := c.buildPayload(req, false)

	tracker.set(stageStart)
	done := make(chan struct{})
	go tracker.simulate(ctx, done)

	comp, retries, err := c.doWithRetry(ctx, payload, tracker)
	close(done)
	if err != nil {
		return nil, err
	}

	tracker.set(stageProcessing)

	if len(comp.Choices) == 0 {
		return nil, &TransportError{
			Provider: c.name,
			Kind:     KindFatal,
			Err:      fmt.Errorf("response contains no choices"),
		}
	}
	content := comp.Choices[0].Message.Content

	usage := c.usageFrom(comp, req, content)
	model := comp.Model
	if model == "" {
		model = c.config.Model
	}

	tracker.set(stageDone)

	return &Response{
		Content:      content,
		Provider:     c.name,
		Model:        model,
		Usage:        usage,
		Latency:      time.Since(start),
		FinishReason: comp.Choices[0].FinishReason,
		RetryCount:   retries,
	}, nil
}

// generateStream runs one generation over SSE, forwarding chunk progress to
// the caller. Connection failures retry like the non-streaming path;
// failures mid-stream surface as transient errors.
func (c *chatCore) generateStream(ctx context.Context, req *GenerateRequest) (*Response, error) {
	start := time.Now()
	tracker := newProgressTracker(req.OnProgress)
	payload := c.buildPayload(req, true)

	var lastErr error
	retries := 0
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			tracker.rollback()
		}
		retries = attempt

		resp, err := c.streamOnce(ctx, payload, req, tracker)
		if err == nil {
			resp.Latency = time.Since(start)
			resp.RetryCount = retries
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var te *TransportError
		if !stderrors.As(err, &te) || !te.Retryable() || attempt == c.config.MaxRetries {
			break
		}
		delay := Backoff(attempt)
		if te.RetryAfter > 0 {
			delay = te.RetryAfter
		}
		c.logger.Warn("stream attempt failed, backing off",
			"attempt", attempt+1, "delay", delay, "error", err)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *chatCore) streamOnce(ctx context.Context, payload map[string]interface{}, req *GenerateRequest, tracker *progressTracker) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &TransportError{Provider: c.name, Kind: KindFatal, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Provider: c.name, Kind: KindFatal, Err: err}
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Provider: c.name, Kind: classifyNetErr(ctx, err), Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, c.statusError(httpResp)
	}

	tracker.set(0.2)

	var content strings.Builder
	var usage *chatUsage
	finishReason := ""
	model := ""
	chunks := 0

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var event chatCompletion
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			c.logger.Warn("unparseable stream event", "error", err)
			continue
		}
		if event.Model != "" {
			model = event.Model
		}
		if event.Usage != nil {
			usage = event.Usage
		}
		if len(event.Choices) > 0 {
			choice := event.Choices[0]
			if choice.Delta.Content != "" {
				content.WriteString(choice.Delta.Content)
				chunks++
				pct := 0.2 + float64(chunks)/100
				if pct > stageProcessing {
					pct = stageProcessing
				}
				tracker.set(pct)
			}
			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &TransportError{Provider: c.name, Kind: KindTransient, Err: fmt.Errorf("read stream: %w", err)}
	}

	tracker.set(stageDone)

	text := content.String()
	if model == "" {
		model = c.config.Model
	}

	resp := &Response{
		Content:      text,
		Provider:     c.name,
		Model:        model,
		FinishReason: finishReason,
	}
	if usage != nil {
		resp.Usage = TokenUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		}
	} else {
		resp.Usage = estimateUsage(req.SystemPrompt+"\n"+req.Prompt, text)
	}
	return resp, nil
}

func (c *chatCore) doWithRetry(ctx context.Context, payload map[string]interface{}, tracker *progressTracker) (*chatCompletion, int, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			tracker.rollback()
		}

		comp, err := c.doOnce(ctx, payload)
		if err == nil {
			return comp, attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, attempt, ctx.Err()
		}
		var te *TransportError
		if !stderrors.As(err, &te) || !te.Retryable() || attempt == c.config.MaxRetries {
			return nil, attempt, err
		}

		delay := Backoff(attempt)
		if te.RetryAfter > 0 {
			delay = te.RetryAfter
		}
		c.logger.Warn("attempt failed, backing off",
			"attempt", attempt+1, "kind", te.Kind, "delay", delay)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, attempt, err
		}
	}
	return nil, c.config.MaxRetries, lastErr
}

func (c *chatCore) doOnce(ctx context.Context, payload map[string]interface{}) (*chatCompletion, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &TransportError{Provider: c.name, Kind: KindFatal, Err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout())
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Provider: c.name, Kind: KindFatal, Err: err}
	}
	c.setHeaders(httpReq)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Provider: c.name, Kind: classifyNetErr(attemptCtx, err), Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, c.statusError(httpResp)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Provider: c.name, Kind: KindTransient, Err: fmt.Errorf("read response: %w", err)}
	}

	var comp chatCompletion
	if err := json.Unmarshal(respBody, &comp); err != nil {
		return nil, &TransportError{Provider: c.name, Kind: KindFatal, Err: fmt.Errorf("malformed response envelope: %w", err)}
	}
	if comp.Error != nil {
		return nil, &TransportError{Provider: c.name, Kind: KindFatal, Err: fmt.Errorf("%s: %s", comp.Error.Type, comp.Error.Message)}
	}
	return &comp, nil
}

// statusError drains the response body into a classified transport error.
func (c *chatCore) statusError(httpResp *http.Response) *TransportError {
	respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
	kind := classifyStatus(httpResp.StatusCode)

	te := &TransportError{
		Provider:   c.name,
		Kind:       kind,
		StatusCode: httpResp.StatusCode,
	}

	var envelope chatCompletion
	if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error != nil {
		te.Err = fmt.Errorf("%s", envelope.Error.Message)
	} else if len(respBody) > 0 {
		te.Err = fmt.Errorf("%s", strings.TrimSpace(string(respBody)))
	}

	if kind == KindRateLimited {
		if ra := httpResp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				te.RetryAfter = time.Duration(secs) * time.Second
			}
		}
	}
	return te
}

func (c *chatCore) buildPayload(req *GenerateRequest, stream bool) map[string]interface{} {
	messages := []chatMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	temperature := c.config.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := c.config.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	payload := map[string]interface{}{
		"model":       c.config.Model,
		"messages":    messages,
		"stream":      stream,
		"temperature": temperature,
	}
	if maxTokens > 0 {
		payload["max_tokens"] = maxTokens
	}
	for k, v := range c.extra {
		payload[k] = v
	}
	return payload
}

func (c *chatCore) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
}

func (c *chatCore) usageFrom(comp *chatCompletion, req *GenerateRequest, content string) TokenUsage {
	if comp.Usage != nil {
		return TokenUsage{
			PromptTokens:     comp.Usage.PromptTokens,
			CompletionTokens: comp.Usage.CompletionTokens,
			TotalTokens:      comp.Usage.TotalTokens,
		}
	}
	return estimateUsage(req.SystemPrompt+"\n"+req.Prompt, content)
}

// healthCheck issues a minimal one-token request.
func (c *chatCore) healthCheck(ctx context.Context) error {
	payload := map[string]interface{}{
		"model":      c.config.Model,
		"messages":   []chatMessage{{Role: "user", Content: "ping"}},
		"max_tokens": 1,
	}
	for k, v := range c.extra {
		payload[k] = v
	}
	_, err := c.doOnce(ctx, payload)
	return err
}

// validateConfig checks local configuration without touching the network.
func (c *chatCore) validateConfig(requireKey bool) error {
	if c.config.Model == "" {
		return errors.New(errors.ErrCodeProviderConfig,
			fmt.Sprintf("provider %s: model is required", c.name))
	}
	if requireKey && c.config.APIKey == "" {
		return errors.NewProviderAuthError(c.name)
	}
	return nil
}

func (c *chatCore) close() error {
	c.client.CloseIdleConnections()
	return nil
}
