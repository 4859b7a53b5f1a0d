package pilot

import (
	"context"
	"image"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-pilot/backend/internal/model/chat"
	"github.com/zhouzirui/z-pilot/backend/internal/service/ai"
	chatService "github.com/zhouzirui/z-pilot/backend/internal/service/chat"
	"github.com/zhouzirui/z-pilot/backend/internal/service/imaging"
)

// Action tells the client what happened to its prompt.
type Action string

const (
	ActionScreenshot    Action = "screenshot"
	ActionSuccess       Action = "success"
	ActionImageAnalysis Action = "image_analysis"
	ActionError         Action = "error"
)

// Turn texts and client messages.
const (
	screenshotRequestedTurn = "Screenshot requested by model."
	screenshotProvidedTurn  = "Screenshot provided"

	msgScreenshotRequested = "Screenshot requested"
	msgAnalysisComplete    = "Analysis complete"
	msgNoValidParts        = "No valid response parts found."
	msgSessionCleared      = "Session cleared"
	msgNoSession           = "No session to clear"
)

// Gateway is the model call the service depends on.
type Gateway interface {
	Generate(ctx context.Context, history []chat.Turn, prompt string, img image.Image) (*ai.Reply, error)
}

// Images covers decoding, resizing and persisting screenshots.
type Images interface {
	Decode(data []byte) (image.Image, error)
	Resize(img image.Image) image.Image
	SaveScreenshot(ctx context.Context, img image.Image, sessionID string) (string, error)
	SaveAnnotated(ctx context.Context, original, resized image.Image, sessionID, replyText string) (imaging.Annotated, error)
}

// Request is one prompt submission. Image is nil when no file was uploaded.
type Request struct {
	Prompt    string
	Image     []byte
	SessionID string
}

// Result is returned to the client as JSON.
type Result struct {
	Action        Action `json:"action"`
	Message       string `json:"message,omitempty"`
	ModelResponse string `json:"gemini_response,omitempty"`
	ResizedImage  string `json:"resized_image,omitempty"`
	OriginalImage string `json:"original_image,omitempty"`
	SessionID     string `json:"session_id"`
}

// ClearResult answers a clear-session request.
type ClearResult struct {
	Message   string  `json:"message"`
	SessionID *string `json:"session_id"`
}

// Service orchestrates sessions, the model gateway and image annotation.
type Service struct {
	sessions *chatService.Service
	gateway  Gateway
	images   Images
}

// NewService wires the request flow.
func NewService(sessions *chatService.Service, gateway Gateway, images Images) *Service {
	return &Service{sessions: sessions, gateway: gateway, images: images}
}

// Process runs one prompt through the model. Every error is terminal for the request.
func (s *Service) Process(ctx context.Context, req Request) (*Result, error) {
	session, created := s.sessions.GetOrCreate(ctx, req.SessionID)
	logger := log.With().Str("session", session.ID).Logger()
	if created {
		logger.Debug().Msg("created session")
	}

	if req.Image == nil {
		return s.processText(ctx, logger, session, req.Prompt)
	}
	return s.processImage(ctx, logger, session, req.Prompt, req.Image)
}

func (s *Service) processText(ctx context.Context, logger zerolog.Logger, session *chat.Session, prompt string) (*Result, error) {
	history := session.Turns()
	s.sessions.Record(session, chat.UserTurn(prompt))

	reply, err := s.gateway.Generate(ctx, history, prompt, nil)
	if err != nil {
		return nil, err
	}

	if reply.HasToolCall(ai.ScreenshotTool) {
		logger.Debug().Msg("function call detected: " + ai.ScreenshotTool)
		s.sessions.Record(session, chat.AssistantTurn(screenshotRequestedTurn))
		return &Result{Action: ActionScreenshot, Message: msgScreenshotRequested, SessionID: session.ID}, nil
	}

	if segments := reply.TextSegments(); len(segments) > 0 {
		text := strings.Join(segments, " ")
		s.sessions.Record(session, chat.AssistantTurn(text))
		logger.Debug().Int("turns", session.Len()).Msg("text response recorded")
		return &Result{Action: ActionSuccess, ModelResponse: text, SessionID: session.ID}, nil
	}

	logger.Warn().Msg("no valid text or actionable parts in model response")
	return &Result{Action: ActionError, Message: msgNoValidParts, SessionID: session.ID}, nil
}

func (s *Service) processImage(ctx context.Context, logger zerolog.Logger, session *chat.Session, prompt string, data []byte) (*Result, error) {
	original, err := s.images.Decode(data)
	if err != nil {
		return nil, err
	}
	resized := s.images.Resize(original)

	screenshotPath, err := s.images.SaveScreenshot(ctx, original, session.ID)
	if err != nil {
		return nil, err
	}

	history := session.Turns()
	userTurn := chat.Turn{Text: screenshotProvidedTurn, IsUser: true, ScreenshotPath: screenshotPath}
	s.sessions.Record(session, userTurn)

	reply, err := s.gateway.Generate(ctx, history, prompt, resized)
	if err != nil {
		return nil, err
	}
	text := reply.Text()

	annotated, err := s.images.SaveAnnotated(ctx, original, resized, session.ID, text)
	if err != nil {
		return nil, err
	}

	s.sessions.Record(session, chat.AssistantTurn(text))

	logger.Debug().Int("boxes", annotated.Boxes).Str("resized", annotated.ResizedURL).Msg("image analysis complete")
	return &Result{
		Action:        ActionImageAnalysis,
		Message:       msgAnalysisComplete,
		ModelResponse: text,
		ResizedImage:  annotated.ResizedURL,
		OriginalImage: annotated.OriginalURL,
		SessionID:     session.ID,
	}, nil
}

// Clear drops the session if it exists.
func (s *Service) Clear(ctx context.Context, sessionID string) ClearResult {
	var id *string
	if sessionID != "" {
		id = &sessionID
		if s.sessions.Clear(ctx, sessionID) {
			log.Debug().Str("session", sessionID).Msg("session cleared")
			return ClearResult{Message: msgSessionCleared, SessionID: id}
		}
	}
	return ClearResult{Message: msgNoSession, SessionID: id}
}
