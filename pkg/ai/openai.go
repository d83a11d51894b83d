package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OpenAIConfig configures the chat-completions client.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// OpenAI implements Provider against an OpenAI-compatible
// /chat/completions endpoint using JSON mode.
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewOpenAI constructs the client.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &OpenAI{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const promptSystem = `You help a science teacher run small-group discussions.
Given the assignment question and each student's answer, write follow-up questions that push the group to compare and extend their reasoning.
Reply with JSON: {"summary": string, "prompts": [{"type": "follow_up"|"reflection"|"extension"|"check_in", "text": string}]}.`

const gradeSystem = `You grade short free-text science answers.
Reply with JSON: {"score": integer 0-100, "feedback": string of at most two sentences}.`

// GeneratePrompts asks the model for req.Count prompts.
func (o *OpenAI) GeneratePrompts(ctx context.Context, req PromptRequest) (*PromptResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Group: %s\nQuestion: %s\nWrite exactly %d prompts.\n\nAnswers:\n", req.GroupName, req.Question, req.Count)
	for _, a := range req.Answers {
		fmt.Fprintf(&b, "- %s: %s\n", a.StudentName, a.Text)
	}

	var result PromptResult
	if err := o.complete(ctx, promptSystem, b.String(), 0.7, &result); err != nil {
		return nil, err
	}

	prompts := result.Prompts[:0]
	for i, p := range result.Prompts {
		p.Text = strings.TrimSpace(p.Text)
		if p.Text == "" {
			continue
		}
		if !knownType(p.Type) {
			p.Type = PromptTypes[i%len(PromptTypes)]
		}
		prompts = append(prompts, p)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("%w: completion contained no prompts", ErrUnavailable)
	}
	if req.Count > 0 && len(prompts) > req.Count {
		prompts = prompts[:req.Count]
	}
	result.Prompts = prompts
	return &result, nil
}

// GradeAnswer asks the model to score one answer.
func (o *OpenAI) GradeAnswer(ctx context.Context, req GradeRequest) (*Grade, error) {
	user := fmt.Sprintf("Question: %s\nAnswer: %s", req.Question, req.Answer)
	var grade Grade
	if err := o.complete(ctx, gradeSystem, user, 0, &grade); err != nil {
		return nil, err
	}
	grade.Score = clampScore(grade.Score)
	grade.Feedback = strings.TrimSpace(grade.Feedback)
	return &grade, nil
}

func (o *OpenAI) complete(ctx context.Context, system, user string, temperature float64, dest interface{}) error {
	payload, err := json.Marshal(chatRequest{
		Model:          o.model,
		Messages:       []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}},
		Temperature:    temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	start := time.Now()
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	o.logger.Debug("ai completion", zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("%w: decode completion: %v", ErrUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return fmt.Errorf("%w: empty completion", ErrUnavailable)
	}
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), dest); err != nil {
		return fmt.Errorf("%w: decode completion content: %v", ErrUnavailable, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
