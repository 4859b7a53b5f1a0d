package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-pilot/backend/internal/model/chat"
	"github.com/zhouzirui/z-pilot/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/z-pilot/backend/internal/service/chat"
	"github.com/zhouzirui/z-pilot/backend/internal/service/imaging"
	"github.com/zhouzirui/z-pilot/backend/internal/service/pilot"
	"github.com/zhouzirui/z-pilot/backend/pkg/failure"
)

type stubGateway struct {
	reply *ai.Reply
	err   error
}

func (s *stubGateway) Generate(context.Context, []chat.Turn, string, image.Image) (*ai.Reply, error) {
	return s.reply, s.err
}

func setupRouter(t *testing.T, gw *stubGateway) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	store, err := imaging.NewStore(imaging.Config{StaticDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStore err: %v", err)
	}

	sessions := chatservice.NewService()
	handler := New(pilot.NewService(sessions, gw, store))

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, sessions
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body %q: %v", resp.Body.String(), err)
	}
	return body
}

func TestProcessPromptTextReply(t *testing.T) {
	r, _ := setupRouter(t, &stubGateway{reply: &ai.Reply{Candidates: []ai.Candidate{{Parts: []ai.Part{{Text: "Tap"}, {Text: " here"}}}}}})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, formRequest("/process_prompt/", url.Values{"prompt": {"where is login"}}))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	body := decode(t, resp)
	if body["action"] != "success" {
		t.Fatalf("unexpected action: %v", body["action"])
	}
	if body["gemini_response"] != "Tap here" {
		t.Fatalf("unexpected response text: %v", body["gemini_response"])
	}
	if body["session_id"] == "" {
		t.Fatal("expected session id")
	}
}

func TestProcessPromptMissingPrompt(t *testing.T) {
	r, _ := setupRouter(t, &stubGateway{})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, formRequest("/process_prompt/", url.Values{"session_id": {"abc"}}))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
}

func TestProcessPromptWhitespacePromptIsAccepted(t *testing.T) {
	gw := &stubGateway{reply: &ai.Reply{Candidates: []ai.Candidate{{Parts: []ai.Part{{Text: "ok"}}}}}}
	r, _ := setupRouter(t, gw)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, formRequest("/process_prompt/", url.Values{"prompt": {"   "}}))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if decode(t, resp)["action"] != "success" {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestProcessPromptGatewayFailure(t *testing.T) {
	r, _ := setupRouter(t, &stubGateway{err: failure.New(failure.KindUpstream, "gemini generate content", errors.New("quota exceeded"))})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, formRequest("/process_prompt/", url.Values{"prompt": {"hi"}}))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	body := decode(t, resp)
	if !strings.Contains(body["detail"].(string), "quota exceeded") {
		t.Fatalf("unexpected detail: %v", body["detail"])
	}
}

func TestProcessPromptWithScreenshot(t *testing.T) {
	r, _ := setupRouter(t, &stubGateway{reply: &ai.Reply{Candidates: []ai.Candidate{{Parts: []ai.Part{
		{Text: `[{"x": 0, "y": 0, "width": 512, "height": 512, "label": "menu"}]`},
	}}}}})

	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 60, 40))); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("prompt", "open the menu")
	part, _ := mw.CreateFormFile("file", "screen.png")
	_, _ = part.Write(img.Bytes())
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/process_prompt/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	got := decode(t, resp)
	if got["action"] != "image_analysis" {
		t.Fatalf("unexpected action: %v", got["action"])
	}
	if !strings.HasPrefix(got["resized_image"].(string), "/static/output/annotated_resized_") {
		t.Fatalf("unexpected resized url: %v", got["resized_image"])
	}
	if !strings.HasPrefix(got["original_image"].(string), "/static/output/annotated_original_") {
		t.Fatalf("unexpected original url: %v", got["original_image"])
	}
}

func TestClearSession(t *testing.T) {
	r, sessions := setupRouter(t, &stubGateway{})
	session, _ := sessions.GetOrCreate(context.Background(), "")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, formRequest("/clear_session/", url.Values{"session_id": {session.ID}}))
	body := decode(t, resp)
	if body["message"] != "Session cleared" || body["session_id"] != session.ID {
		t.Fatalf("unexpected body: %v", body)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, formRequest("/clear_session/", url.Values{}))
	body = decode(t, resp)
	if body["message"] != "No session to clear" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
	if body["session_id"] != nil {
		t.Fatalf("expected null session id, got %v", body["session_id"])
	}
}
