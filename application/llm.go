package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"alphastral/domain"
)

// 429時の再試行間隔
var retryDelays = []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}

// LLMConfig はモデルベースエージェントの接続設定です。
type LLMConfig struct {
	BaseURL   string        // chat-completions互換エンドポイント
	APIKey    string        // 空の場合はAuthorizationヘッダを付けない
	ModelID   string        // 例: mistral-large-latest
	Throttle  time.Duration // 連続呼び出し間の最小間隔（レート制限対策）
	MaxTokens int
}

// LLMAgent は外部の言語モデルに状態のテキスト表現を渡し、
// JSON応答を1手に解釈するエージェントです。
// API・解析の失敗はエラーとして返し、再試行とフォールバックは
// 呼び出し側（Session）のポリシーに委ねます。
type LLMAgent struct {
	cfg    LLMConfig
	client *http.Client

	mu       sync.Mutex // 複数セッションから共有されるためlastCallを守る
	lastCall time.Time
}

func NewLLMAgent(cfg LLMConfig) *LLMAgent {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 150
	}
	return &LLMAgent{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *LLMAgent) Name() string { return "llm:" + a.cfg.ModelID }

func (a *LLMAgent) Decide(ctx context.Context, view domain.StateView, legal domain.LegalActionSet) (domain.Decision, error) {
	if err := a.throttle(ctx); err != nil {
		return domain.Decision{}, err
	}
	raw, err := a.complete(ctx, BuildPrompt(view, legal))
	if err != nil {
		return domain.Decision{}, err
	}
	return ParseReply(raw)
}

func (a *LLMAgent) throttle(ctx context.Context) error {
	if a.cfg.Throttle <= 0 {
		return nil
	}
	a.mu.Lock()
	wait := a.cfg.Throttle - time.Since(a.lastCall)
	if wait < 0 {
		wait = 0
	}
	a.lastCall = time.Now().Add(wait)
	a.mu.Unlock()

	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	MaxTokens      int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete はchat-completions APIを呼びます。429は段階的に待って
// 再試行し、すべて使い切ったらエラーを返します。
func (a *LLMAgent) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: a.cfg.ModelID,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
		MaxTokens:      a.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	for attempt := 0; ; attempt++ {
		reply, status, err := a.post(ctx, body)
		if err != nil {
			return "", err
		}
		if status == http.StatusTooManyRequests {
			if attempt >= len(retryDelays) {
				return "", fmt.Errorf("rate limit exceeded after %d retries", len(retryDelays))
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryDelays[attempt]):
			}
			continue
		}
		if status != http.StatusOK {
			return "", fmt.Errorf("chat completion failed: status %d", status)
		}
		return reply, nil
	}
}

func (a *LLMAgent) post(ctx context.Context, body []byte) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", resp.StatusCode, nil
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", resp.StatusCode, fmt.Errorf("empty choices in response")
	}
	return parsed.Choices[0].Message.Content, resp.StatusCode, nil
}
