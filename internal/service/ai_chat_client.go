package service

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
)

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultDeepSeekModel = "deepseek-chat"
	aiRequestTimeout     = 30 * time.Second
	maxAIResponseBytes   = 1 << 20
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// aiChatRequest 一次提示词调用：系统提示 + 用户提示。
type aiChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

type aiReply struct {
	Text  string
	Model string
}

// aiEndpoint 为某个服务商解析出的调用目标
type aiEndpoint struct {
	label  string
	url    string
	model  string
	apiKey string
}

// aiChatClient 调用兼容 OpenAI chat/completions 协议的接口
type aiChatClient struct {
	http            httpDoer
	openAIBaseURL   string
	deepSeekBaseURL string
}

func newAIChatClient() *aiChatClient {
	return &aiChatClient{
		http:            &http.Client{Timeout: aiRequestTimeout},
		openAIBaseURL:   "https://api.openai.com/v1",
		deepSeekBaseURL: "https://api.deepseek.com/v1",
	}
}

func (c *aiChatClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		client = &http.Client{Timeout: aiRequestTimeout}
	}
	c.http = client
}

func (c *aiChatClient) SetOpenAIBaseURL(base string) { c.openAIBaseURL = trimBaseURL(base) }

func (c *aiChatClient) SetDeepSeekBaseURL(base string) { c.deepSeekBaseURL = trimBaseURL(base) }

func trimBaseURL(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}

func (c *aiChatClient) endpointFor(settings SystemSettings) (aiEndpoint, error) {
	key := settings.APIKey()
	if key == "" {
		return aiEndpoint{}, ErrAIAPIKeyMissing
	}

	ep := aiEndpoint{label: "OpenAI", url: c.openAIBaseURL, model: defaultOpenAIModel, apiKey: key}
	if normalizeAIProvider(settings.AIProvider) == AIProviderDeepSeek {
		ep.label, ep.url, ep.model = "DeepSeek", c.deepSeekBaseURL, defaultDeepSeekModel
	}
	if m := strings.TrimSpace(settings.AIModel); m != "" {
		ep.model = m
	}
	ep.url = trimBaseURL(ep.url) + "/chat/completions"
	return ep, nil
}

// callWithSettings 按系统设置选择服务商并发起一次补全调用，返回首个候选的文本。
func (c *aiChatClient) callWithSettings(ctx context.Context, settings SystemSettings, req aiChatRequest) (aiReply, error) {
	ep, err := c.endpointFor(settings)
	if err != nil {
		return aiReply{}, err
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model: ep.model,
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(req.SystemPrompt)},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens:   max(req.MaxTokens, 0),
		Temperature: req.Temperature,
	})
	if err != nil {
		return aiReply{}, fmt.Errorf("构造请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.url, bytes.NewReader(body))
	if err != nil {
		return aiReply{}, fmt.Errorf("创建 %s 请求失败: %w", ep.label, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+ep.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	doer := c.http
	if doer == nil {
		doer = http.DefaultClient
	}
	resp, err := doer.Do(httpReq)
	if err != nil {
		return aiReply{}, fmt.Errorf("请求 %s 接口失败: %w", ep.label, err)
	}
	defer resp.Body.Close()

	text, err := decodeCompletion(resp)
	if err != nil {
		return aiReply{}, fmt.Errorf("%s %w", ep.label, err)
	}
	return aiReply{Text: text, Model: ep.model}, nil
}

// decodeCompletion 读取补全响应；状态码 ≥400 时优先返回上游 error.message，其次 HTTP 状态。
func decodeCompletion(resp *http.Response) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAIResponseBytes))
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}

	var out struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode >= http.StatusBadRequest {
		msg := strings.TrimSpace(out.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("接口返回错误：%s", msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("解析响应失败: %w", decodeErr)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("接口未返回结果")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
