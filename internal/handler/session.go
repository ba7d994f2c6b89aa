package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"saykit-agent/internal/model"
	"saykit-agent/internal/service/conversation"
)

const defaultEventLimit = 20

// SessionHandler 处理对话会话相关 HTTP 请求
type SessionHandler struct {
	hub *conversation.Hub
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(hub *conversation.Hub) *SessionHandler {
	return &SessionHandler{hub: hub}
}

// Create 新建会话
// POST /api/v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	m, err := h.hub.Create(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, m.Status())
}

// Get 会话状态
// GET /api/v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m.Status())
}

// Delete 关闭会话
// DELETE /api/v1/sessions/:id
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.hub.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// Text 接收识别文本：有活动请求时回答请求，否则分发命令
// POST /api/v1/sessions/:id/text
func (h *SessionHandler) Text(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}
	var req model.TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	resp, err := m.HandleText(c.Request.Context(), req.Text)
	if err != nil {
		writeError(c, err, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Listen 呈现语音命令请求
// POST /api/v1/sessions/:id/listen
func (h *SessionHandler) Listen(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}
	id, err := m.Listen(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusAccepted, model.PresentResponse{SessionID: m.ID(), RequestID: id})
}

// Present 呈现语音请求
// POST /api/v1/sessions/:id/requests
func (h *SessionHandler) Present(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}
	var req model.PresentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	id, err := m.PresentRequest(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusAccepted, model.PresentResponse{SessionID: m.ID(), RequestID: id})
}

// Choose 按下标回答选择请求
// POST /api/v1/sessions/:id/requests/choose
func (h *SessionHandler) Choose(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}
	var req model.ChooseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	out, err := m.Choose(c.Request.Context(), *req.Index)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Cancel 取消活动请求
// POST /api/v1/sessions/:id/requests/cancel
func (h *SessionHandler) Cancel(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}
	if err := m.Cancel(c.Request.Context()); err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, m.Status())
}

// Fail 上报语音识别失败
// POST /api/v1/sessions/:id/requests/fail
func (h *SessionHandler) Fail(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}
	var req model.FailRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
	}
	if err := m.Fail(c.Request.Context(), req.Reason); err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, m.Status())
}

// Events 最近投递的音频序列
// GET /api/v1/sessions/:id/events?limit=N
func (h *SessionHandler) Events(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}
	limit := defaultEventLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	events, err := m.Events(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	if events == nil {
		events = []model.PostedSequence{}
	}
	c.JSON(http.StatusOK, gin.H{"session_id": m.ID(), "events": events})
}

func (h *SessionHandler) session(c *gin.Context) (*conversation.Manager, bool) {
	m, err := h.hub.Get(c.Param("id"))
	if err != nil {
		writeError(c, err, nil)
		return nil, false
	}
	return m, true
}

// writeError 按错误类型映射状态码
func writeError(c *gin.Context, err error, result any) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidState), errors.Is(err, model.ErrRequestAborted):
		status = http.StatusConflict
	case errors.Is(err, model.ErrNoMatch), errors.Is(err, model.ErrMissingParameter):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInvalidRequest), errors.Is(err, model.ErrInvalidTemplate):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrLLMUnavailable):
		status = http.StatusServiceUnavailable
	}
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	if result != nil {
		body["result"] = result
	}
	c.JSON(status, body)
}
