package responder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/bookworm-labs/bookchat/internal/config"
)

const systemPrompt = "You are a helpful assistant for an educational textbook. " +
	"Answer the reader's question concisely and accurately."

// Gemini streams replies from the Gemini API.
type Gemini struct {
	apiKey string
	model  string
}

// NewGemini creates a Gemini responder.
func NewGemini(cfg config.GeminiConfig) *Gemini {
	return &Gemini{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
}

func (g *Gemini) Name() string {
	return "gemini"
}

// IsConfigured checks if the responder has an API key
func (g *Gemini) IsConfigured() bool {
	return g.apiKey != ""
}

func (g *Gemini) Respond(ctx context.Context, message string, emit func(delta string) error) error {
	if !g.IsConfigured() {
		return errors.New("gemini responder is not configured (missing API key)")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	iter := model.GenerateContentStream(ctx, genai.Text(message))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gemini stream error: %w", err)
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				text, ok := part.(genai.Text)
				if !ok {
					continue
				}
				if err := emit(string(text)); err != nil {
					return err
				}
			}
		}
	}
}
