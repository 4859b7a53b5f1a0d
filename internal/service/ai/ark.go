package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-pilot/backend/internal/config"
	"github.com/zhouzirui/z-pilot/backend/internal/model/chat"
	"github.com/zhouzirui/z-pilot/backend/pkg/failure"
)

// ArkGateway runs the same exchange through an eino chat model backed by Volcengine Ark.
type ArkGateway struct {
	chatModel model.ChatModel
	system    string
}

// NewArkGateway creates the Ark chat model and binds the screenshot tool to it.
func NewArkGateway(ctx context.Context, cfg config.AIConfig) (*ArkGateway, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, failure.New(failure.KindConfig, "ark gateway", errors.Wrap(err, "creating chat model"))
	}
	return newArkGateway(chatModel, cfg.SystemInstructions)
}

func newArkGateway(chatModel model.ChatModel, system string) (*ArkGateway, error) {
	if err := chatModel.BindTools([]*schema.ToolInfo{screenshotToolInfo()}); err != nil {
		return nil, failure.New(failure.KindConfig, "ark gateway", errors.Wrap(err, "binding tools"))
	}
	return &ArkGateway{chatModel: chatModel, system: system}, nil
}

// Generate implements Gateway.
func (g *ArkGateway) Generate(ctx context.Context, history []chat.Turn, prompt string, img image.Image) (*Reply, error) {
	messages, err := buildArkMessages(g.system, history, prompt, img)
	if err != nil {
		return nil, failure.New(failure.KindInternal, "ark request", err)
	}

	log.Info().Int("history", len(history)).Bool("image", img != nil).Msg("generating content with ark")

	res, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, failure.New(failure.KindUpstream, "ark generate", errors.Wrap(err, "chat model"))
	}

	reply := replyFromSchema(res)
	log.Debug().Int("tool_calls", len(reply.ToolCalls())).Msg("ark response")
	return reply, nil
}

func screenshotToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name:        ScreenshotTool,
		Desc:        screenshotToolDesc,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}
}

func buildArkMessages(system string, history []chat.Turn, prompt string, img image.Image) ([]*schema.Message, error) {
	texts := flatten(history, prompt)
	parts := make([]schema.ChatMessagePart, 0, len(texts)+1)
	for _, text := range texts {
		parts = append(parts, schema.ChatMessagePart{Type: schema.ChatMessagePartTypeText, Text: text})
	}

	if img != nil {
		data, err := encodePNG(img)
		if err != nil {
			return nil, err
		}
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL:      "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
				MIMEType: "image/png",
			},
		})
	}

	return []*schema.Message{
		schema.SystemMessage(system),
		{Role: schema.User, MultiContent: parts},
	}, nil
}

func replyFromSchema(msg *schema.Message) *Reply {
	reply := &Reply{}
	if msg == nil {
		return reply
	}

	var c Candidate
	if msg.Content != "" {
		c.Parts = append(c.Parts, Part{Text: msg.Content})
	}
	for _, call := range msg.ToolCalls {
		var args map[string]any
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				args = map[string]any{"raw": call.Function.Arguments}
			}
		}
		c.Parts = append(c.Parts, Part{ToolCall: &ToolCall{Name: call.Function.Name, Args: args}})
	}
	reply.Candidates = append(reply.Candidates, c)
	return reply
}
