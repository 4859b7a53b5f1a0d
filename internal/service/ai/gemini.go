package ai

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/zhouzirui/z-pilot/backend/internal/config"
	"github.com/zhouzirui/z-pilot/backend/internal/model/chat"
	"github.com/zhouzirui/z-pilot/backend/pkg/failure"
)

// GeminiGateway talks to the Gemini API.
type GeminiGateway struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiGateway creates a Gemini API client from the API key in cfg.
func NewGeminiGateway(ctx context.Context, cfg config.AIConfig) (*GeminiGateway, error) {
	if cfg.GoogleAPIKey == "" {
		return nil, failure.Newf(failure.KindConfig, "gemini gateway", "GOOGLE_API_KEY is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GoogleAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, failure.New(failure.KindConfig, "gemini gateway", errors.Wrap(err, "creating genai client"))
	}

	return &GeminiGateway{
		client: client,
		model:  cfg.Model,
		config: buildGeminiConfig(cfg),
	}, nil
}

// Generate implements Gateway.
func (g *GeminiGateway) Generate(ctx context.Context, history []chat.Turn, prompt string, img image.Image) (*Reply, error) {
	contents, err := buildGeminiContents(history, prompt, img)
	if err != nil {
		return nil, failure.New(failure.KindInternal, "gemini request", err)
	}

	log.Info().Str("model", g.model).Int("history", len(history)).Bool("image", img != nil).Msg("generating content with gemini")

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, g.config)
	if err != nil {
		return nil, failure.New(failure.KindUpstream, "gemini generate content", errors.Wrap(err, g.model))
	}

	reply := replyFromGemini(res)
	log.Debug().Int("candidates", len(reply.Candidates)).Int("tool_calls", len(reply.ToolCalls())).Msg("gemini response")
	return reply, nil
}

func buildGeminiConfig(cfg config.AIConfig) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		SystemInstruction:  genai.NewContentFromText(cfg.SystemInstructions, genai.RoleUser),
		ResponseModalities: []string{"TEXT"},
		Tools: []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        ScreenshotTool,
				Description: screenshotToolDesc,
			}},
		}},
		ToolConfig: &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		},
	}

	if cfg.Temperature != nil {
		temp := float32(*cfg.Temperature)
		gc.Temperature = &temp
	}
	if cfg.MaxTokens != nil {
		gc.MaxOutputTokens = int32(*cfg.MaxTokens)
	}
	return gc
}

// buildGeminiContents packs history, prompt and image into one user content.
func buildGeminiContents(history []chat.Turn, prompt string, img image.Image) ([]*genai.Content, error) {
	texts := flatten(history, prompt)
	parts := make([]*genai.Part, 0, len(texts)+1)
	for _, text := range texts {
		parts = append(parts, genai.NewPartFromText(text))
	}

	if img != nil {
		data, err := encodePNG(img)
		if err != nil {
			return nil, err
		}
		parts = append(parts, genai.NewPartFromBytes(data, "image/png"))
	}

	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
}

func replyFromGemini(res *genai.GenerateContentResponse) *Reply {
	reply := &Reply{}
	if res == nil {
		return reply
	}

	for _, cand := range res.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var c Candidate
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			switch {
			case part.Text != "":
				c.Parts = append(c.Parts, Part{Text: part.Text})
			case part.FunctionCall != nil:
				c.Parts = append(c.Parts, Part{ToolCall: &ToolCall{
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				}})
			}
		}
		reply.Candidates = append(reply.Candidates, c)
	}
	return reply
}
