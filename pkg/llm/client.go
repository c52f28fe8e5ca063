// Package llm adapts language-model providers behind one request/response
// shape. The reconciliation core is provider-agnostic: it hands over a
// prompt string and gets back free text.
package llm

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Request is a single completion request.
type Request struct {
	Model     string
	MaxTokens int64
	System    string
	Prompt    string
}

// Response is the provider's reply.
type Response struct {
	Text         string
	Model        string
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// Client is the minimal surface the extractors need from any provider.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// anthropicClient implements Client using the official anthropic-sdk-go.
type anthropicClient struct {
	client sdk.Client
}

// NewAnthropicClient creates a Client backed by the Anthropic API.
func NewAnthropicClient(apiKey string) Client {
	return &anthropicClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
	}
}

func (c *anthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "llm: create message")
	}

	return fromSDKMessage(msg), nil
}

func fromSDKMessage(msg *sdk.Message) *Response {
	var text string
	for _, b := range msg.Content {
		if b.Type == "" || b.Type == "text" {
			text += b.Text
		}
	}
	return &Response{
		Text:         text,
		Model:        string(msg.Model),
		StopReason:   string(msg.StopReason),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}
}
