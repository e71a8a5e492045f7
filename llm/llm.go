// Package llm wraps the chat-completion API behind three call shapes: a
// plain completion, a single-shot tool selection, and a bounded
// tool-execution loop for interactive queries.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// maxToolRounds bounds the execute-and-reprompt loop in RunTools.
const maxToolRounds = 4

// Client is a thin wrapper over the OpenAI-compatible chat API.
type Client struct {
	api   *openai.Client
	model string
}

// New builds a client for the given model. The API key comes from
// OPENAI_API_KEY and an optional alternate endpoint from OPENAI_BASE_URL.
func New(model string) *Client {
	cfg := openai.DefaultConfig(os.Getenv("OPENAI_API_KEY"))
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	return NewWithConfig(cfg, model)
}

// NewWithConfig builds a client from an explicit SDK config, mainly for
// tests pointing at a local server.
func NewWithConfig(cfg openai.ClientConfig, model string) *Client {
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

// Complete issues one plain completion and returns the generated text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Selection is the outcome of a tool-assisted call: either generated text
// or the name and arguments of the one tool the model invoked.
type Selection struct {
	Text string
	Tool string
	Args json.RawMessage
}

// Choose issues one completion with the given tools attached and reports
// what the model picked. When the model invokes tools, only the first
// invocation is honored.
func (c *Client) Choose(ctx context.Context, prompt string, tools []openai.Tool) (Selection, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Tools: tools,
	})
	if err != nil {
		return Selection{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Selection{}, errors.New("chat completion returned no choices")
	}

	msg := resp.Choices[0].Message
	sel := Selection{Text: msg.Content}
	if len(msg.ToolCalls) > 0 {
		sel.Tool = msg.ToolCalls[0].Function.Name
		sel.Args = json.RawMessage(msg.ToolCalls[0].Function.Arguments)
	}
	return sel, nil
}

// Tool pairs a function definition with the code that executes it.
type Tool struct {
	Definition openai.Tool
	Run        func(ctx context.Context, args json.RawMessage) (string, error)
}

// RunTools answers a prompt with executable tools attached: each round the
// model's tool invocations are executed and their results fed back, until
// the model produces plain text or the round budget runs out.
func (c *Client) RunTools(ctx context.Context, prompt string, tools []Tool) (string, error) {
	defs := make([]openai.Tool, 0, len(tools))
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		defs = append(defs, t.Definition)
		byName[t.Definition.Function.Name] = t
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}
	for round := 0; round < maxToolRounds; round++ {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    c.model,
			Messages: messages,
			Tools:    defs,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("chat completion returned no choices")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		messages = append(messages, msg)
		for _, tc := range msg.ToolCalls {
			result := c.execute(ctx, byName, tc)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}
	return "", fmt.Errorf("tool loop did not settle within %d rounds", maxToolRounds)
}

func (c *Client) execute(ctx context.Context, byName map[string]Tool, tc openai.ToolCall) string {
	tool, ok := byName[tc.Function.Name]
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", tc.Function.Name)
	}
	result, err := tool.Run(ctx, json.RawMessage(tc.Function.Arguments))
	if err != nil {
		return "error: " + err.Error()
	}
	return result
}

// FunctionTool builds a function-type tool definition. A nil params schema
// becomes an empty object schema, which the API requires for no-argument
// functions.
func FunctionTool(name, description string, params *jsonschema.Definition) openai.Tool {
	if params == nil {
		params = &jsonschema.Definition{
			Type:       jsonschema.Object,
			Properties: map[string]jsonschema.Definition{},
		}
	}
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}
