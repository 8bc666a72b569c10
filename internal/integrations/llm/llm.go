// Package llm writes an optional short narrative on top of a computed
// top-issues report. The narrative never changes ranking or counts.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/apex/log"

	"issueboard/internal/config"
	"issueboard/internal/domain"
	"issueboard/internal/httpx"
)

var ErrDisabled = errors.New("llm narrative disabled")

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"

// maxPromptIssues bounds how many ranked issues go into the prompt.
const maxPromptIssues = 15

// Overridden in tests.
var (
	anthropicBaseURL = ""
	openAIEndpoint   = "https://api.openai.com/v1/chat/completions"
)

type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

const systemPrompt = `You are a support operations analyst. You receive a ranked list of recurring support ticket issues that was already computed.
Write a short digest (at most 5 sentences) for the support team: what dominates, which platforms are affected, and what looks worth escalating.
Do not re-rank, merge or recount issues. Quote counts exactly as given. Answer in the language the issue summaries are written in.`

// SummarizeTopIssues asks the configured provider for a narrative.
func SummarizeTopIssues(ctx context.Context, cfg config.Config, report domain.Report) (string, Usage, error) {
	if !cfg.LLMConfigured() {
		return "", Usage{}, ErrDisabled
	}
	if len(report.TopIssues) == 0 {
		return "", Usage{}, nil
	}

	userPrompt := buildPrompt(report)
	switch cfg.LLMProvider {
	case "anthropic":
		model := cfg.LLMModel
		if model == "" {
			model = defaultAnthropicModel
		}
		return callAnthropic(ctx, cfg.AnthropicAPIKey, model, systemPrompt, userPrompt)
	case "openai":
		model := cfg.LLMModel
		if model == "" {
			model = defaultOpenAIModel
		}
		return callOpenAI(ctx, cfg.OpenAIAPIKey, model, systemPrompt, userPrompt)
	default:
		return "", Usage{}, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

func buildPrompt(report domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tickets in scope: %d\n", report.TotalTicketsInScope)
	if report.Filters.StartDate != nil || report.Filters.EndDate != nil {
		fmt.Fprintf(&b, "Window: %s to %s\n", deref(report.Filters.StartDate), deref(report.Filters.EndDate))
	}
	if report.Filters.ProductLine != "" {
		fmt.Fprintf(&b, "Product line: %s\n", report.Filters.ProductLine)
	}
	b.WriteString("Ranked issues:\n")
	for i, issue := range report.TopIssues {
		if i == maxPromptIssues {
			fmt.Fprintf(&b, "(%d more issues omitted)\n", len(report.TopIssues)-maxPromptIssues)
			break
		}
		fmt.Fprintf(&b, "%d. %s | count=%d | share=%.2f%% | platforms=%s\n",
			i+1, issue.Summary, issue.Count, issue.RatioInFiltered, issue.Platform)
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// --- Anthropic ---

func callAnthropic(ctx context.Context, apiKey, model, systemPrompt, userPrompt string) (string, Usage, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpx.ExternalHTTPClient()),
	}
	if anthropicBaseURL != "" {
		opts = append(opts, option.WithBaseURL(anthropicBaseURL), option.WithMaxRetries(0))
	}
	client := anthropic.NewClient(opts...)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.WithError(err).Error("llm anthropic error")
		return "", Usage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := Usage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Infof("llm anthropic response size=%d tokens_in=%d tokens_out=%d", len(block.Text), usage.InputTokens, usage.OutputTokens)
			return strings.TrimSpace(block.Text), usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}

// --- OpenAI ---

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func callOpenAI(ctx context.Context, apiKey, model, systemPrompt, userPrompt string) (string, Usage, error) {
	reqBody := openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIEndpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", Usage{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := httpx.ExternalHTTPClient().Do(req)
	if err != nil {
		log.WithError(err).Error("llm openai error")
		return "", Usage{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("reading response: %w", err)
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return "", Usage{}, fmt.Errorf("parsing OpenAI response: %w", err)
	}
	if openAIResp.Error != nil {
		log.Errorf("llm openai api error: %s", openAIResp.Error.Message)
		return "", Usage{}, fmt.Errorf("OpenAI API error: %s", openAIResp.Error.Message)
	}
	if len(openAIResp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("no choices in OpenAI response")
	}

	usage := Usage{}
	if openAIResp.Usage != nil {
		usage.InputTokens = openAIResp.Usage.PromptTokens
		usage.OutputTokens = openAIResp.Usage.CompletionTokens
	}
	content := openAIResp.Choices[0].Message.Content
	log.Infof("llm openai response size=%d tokens_in=%d tokens_out=%d", len(content), usage.InputTokens, usage.OutputTokens)
	return strings.TrimSpace(content), usage, nil
}
