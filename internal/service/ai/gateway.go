package ai

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/zhouzirui/z-pilot/backend/internal/config"
	"github.com/zhouzirui/z-pilot/backend/internal/model/chat"
	"github.com/zhouzirui/z-pilot/backend/pkg/failure"
)

// ScreenshotTool is the only tool the model may call. It takes no parameters.
const (
	ScreenshotTool     = "request_screenshot"
	screenshotToolDesc = "Capture the current screen of the device so the UI can be inspected."
)

// Gateway sends one conversation step to the model.
type Gateway interface {
	Generate(ctx context.Context, history []chat.Turn, prompt string, img image.Image) (*Reply, error)
}

// NewGateway builds the gateway for the configured provider.
func NewGateway(ctx context.Context, cfg config.AIConfig) (Gateway, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		gw, err := NewGeminiGateway(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return gw, nil
	case config.ProviderArk:
		gw, err := NewArkGateway(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return gw, nil
	default:
		return nil, failure.Newf(failure.KindConfig, "model gateway", "unsupported provider %q", cfg.Provider)
	}
}

// flatten lists the prior turn texts followed by the new prompt.
func flatten(history []chat.Turn, prompt string) []string {
	texts := make([]string, 0, len(history)+1)
	for _, turn := range history {
		texts = append(texts, turn.Text)
	}
	return append(texts, prompt)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image for model: %w", err)
	}
	return buf.Bytes(), nil
}
