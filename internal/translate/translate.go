package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Translator normalizes text in language lang to English.
type Translator interface {
	Name() string
	Translate(ctx context.Context, text, lang string) (string, error)
}

// Noop returns the input unchanged. It is used when translation is disabled.
type Noop struct{}

func (Noop) Name() string {
	return "noop"
}

func (Noop) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

type OpenAITranslator struct {
	client *openai.Client
	model  string
}

func NewOpenAITranslator(client *openai.Client, model string) (*OpenAITranslator, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAITranslator{client: client, model: model}, nil
}

func (t *OpenAITranslator) Name() string {
	return "openai"
}

const systemPrompt = "You translate short browser commands into English. " +
	"Reply with the English translation only, no quotes and no explanations. " +
	"Keep e-mail addresses, user names, passwords and numbers exactly as written."

func (t *OpenAITranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil
	}

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Source language: " + strings.TrimSpace(lang) + "\n\n" + trimmed},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai translate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai translate returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.Trim(content, "\"'`")
	if content == "" {
		return "", errors.New("openai translate returned empty content")
	}
	return content, nil
}
