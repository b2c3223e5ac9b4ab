// Package ai wraps the AI orchestrator: reply generation with tool calls and
// audio transcription. Prompt content is deliberately thin; the pipeline only
// depends on the (reply, actions) contract.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ninalabs/ninabot/internal/config"
)

// Action is one side effect the model requested alongside its reply.
type Action struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionContext carries the conversation facts the model should know.
type SessionContext struct {
	Sender      string
	Platform    string
	DisplayName string
	Attribution string
}

// Orchestrator generates replies and transcribes audio.
type Orchestrator interface {
	GenerateReply(ctx context.Context, history []Message, newMessage string, sc SessionContext) (string, []Action, error)
	Transcribe(ctx context.Context, mediaURL string) (string, error)
}

// OpenAI is the go-openai backed Orchestrator.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

// New creates an OpenAI orchestrator from config.
func New(cfg config.OpenAIConfig, logger *slog.Logger) *OpenAI {
	return &OpenAI{
		client:  openai.NewClient(cfg.APIKey),
		model:   cfg.Model,
		timeout: cfg.ReplyTimeout(),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With(slog.String("service", "ai")),
	}
}

const systemPrompt = `Eres Nina, asesora virtual de Residencias. Atiendes por WhatsApp
a personas interesadas en nuestras propiedades. Responde breve, cálido y en el idioma
del cliente. Cuando el cliente comparta datos de contacto usa capture_customer_info;
cuando pida una visita, llamada o información usa qualify_lead.`

// GenerateReply asks the model for a reply plus requested actions, bounded by
// a hard deadline. A timeout surfaces as an error; the pipeline substitutes a
// safe fallback and keeps going.
func (o *OpenAI) GenerateReply(ctx context.Context, history []Message, newMessage string, sc SessionContext) (string, []Action, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt + contextBlock(sc),
	})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: newMessage,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		Tools:    toolDefinitions,
	})
	if err != nil {
		return "", nil, fmt.Errorf("generate reply: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("generate reply: empty response")
	}

	choice := resp.Choices[0].Message
	o.logger.Debug("chat completion",
		slog.String("model", o.model),
		slog.Int("history", len(history)),
		slog.Int("tool_calls", len(choice.ToolCalls)))

	actions := make([]Action, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		actions = append(actions, Action{
			Name: tc.Function.Name,
			Args: json.RawMessage(tc.Function.Arguments),
		})
	}
	return choice.Content, actions, nil
}

// Transcribe downloads the audio at mediaURL and runs Whisper over it.
func (o *OpenAI) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("transcribe: build request: %w", err)
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcribe: fetch audio: status %d", resp.StatusCode)
	}

	out, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   resp.Body,
		FilePath: "voice.ogg",
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return out.Text, nil
}

func contextBlock(sc SessionContext) string {
	block := "\n\nContexto: canal " + sc.Platform
	if sc.DisplayName != "" {
		block += ", cliente " + sc.DisplayName
	}
	if sc.Attribution != "" {
		block += ", origen " + sc.Attribution
	}
	return block
}
