package prompt

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-pilot/backend/internal/service/pilot"
	"github.com/zhouzirui/z-pilot/backend/pkg/failure"
	"github.com/zhouzirui/z-pilot/backend/pkg/utils"
)

// MaxUploadBytes 限制单次上传截图的大小。
const MaxUploadBytes = 32 << 20

// Handler 处理提示词与会话清理请求
type Handler struct {
	svc *pilot.Service
}

// New 创建处理器
func New(svc *pilot.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/process_prompt/", h.handleProcessPrompt)
	r.Post("/clear_session/", h.handleClearSession)
}

// handleProcessPrompt 接收 prompt、可选截图与 session_id
func (h *Handler) handleProcessPrompt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := parseForm(r); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid form body: "+err.Error())
		return
	}

	prompt := r.FormValue("prompt")
	if prompt == "" {
		utils.RespondError(w, http.StatusUnprocessableEntity, "prompt is required")
		return
	}

	image, err := readUpload(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid file upload: "+err.Error())
		return
	}

	result, err := h.svc.Process(r.Context(), pilot.Request{
		Prompt:    prompt,
		Image:     image,
		SessionID: r.FormValue("session_id"),
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("kind", string(failure.KindOf(err))).
			Bool("retryable", failure.IsRetryable(err)).
			Msg("error processing prompt")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// handleClearSession 清理会话
func (h *Handler) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid form body: "+err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, h.svc.Clear(r.Context(), r.FormValue("session_id")))
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(MaxUploadBytes)
	}
	return r.ParseForm()
}

// readUpload returns nil when no file field was sent.
func readUpload(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}
