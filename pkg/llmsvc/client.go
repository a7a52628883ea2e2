// Package llmsvc wraps the Anthropic API for question answering over
// retrieved document passages. It formats passages into a grounded prompt
// and returns the model's text response.
package llmsvc

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 1024
)

// Client answers analysis questions grounded in document passages.
type Client interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error)
}

// AnalyzeRequest carries one question and the passages that ground it.
// AnalysisType selects the system prompt (title, contract, cross_document).
type AnalyzeRequest struct {
	Query        string
	Passages     []string
	AnalysisType string
}

// AnalyzeResponse is the model's answer.
type AnalyzeResponse struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

var systemPrompts = map[string]string{
	"title": "You are a real-estate title examiner. Answer strictly from the " +
		"provided title deed excerpts. Flag liens, encumbrances, ownership " +
		"defects, and registration problems. If the excerpts do not contain " +
		"the answer, say so.",
	"contract": "You are a real-estate contract reviewer representing the buyer. " +
		"Answer strictly from the provided agreement excerpts. Flag unfair " +
		"terms, missing protections, and cost traps. If the excerpts do not " +
		"contain the answer, say so.",
	"cross_document": "You are a due-diligence reviewer comparing excerpts from " +
		"multiple documents for the same property. Identify inconsistencies " +
		"and contradictions between them. If the excerpts agree, say so.",
}

const fallbackSystemPrompt = "You are a real-estate due-diligence assistant. " +
	"Answer strictly from the provided document excerpts."

// Option configures the client.
type Option func(*sdkClient)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *sdkClient) {
		c.model = model
	}
}

// WithMaxTokens overrides the default response token cap.
func WithMaxTokens(n int64) Option {
	return func(c *sdkClient) {
		c.maxTokens = n
	}
}

type sdkClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// NewClient creates an Anthropic-backed analysis client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *sdkClient) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	system, ok := systemPrompts[req.AnalysisType]
	if !ok {
		system = fallbackSystemPrompt
	}

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []sdk.TextBlockParam{
			{Text: system},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(buildPrompt(req))),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "llmsvc: create message")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &AnalyzeResponse{
		Text:         sb.String(),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

func buildPrompt(req AnalyzeRequest) string {
	var sb strings.Builder
	sb.WriteString("Document excerpts:\n\n")
	for i, p := range req.Passages {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, p)
	}
	sb.WriteString("Question: ")
	sb.WriteString(req.Query)
	return sb.String()
}
