package handlers

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/lucemdev/fundtrace/internal/platform/logger"
)

// EchoHandler reflects the incoming request back to the caller; it exists
// for connectivity and deployment smoke tests only.
type EchoHandler struct {
	log *logger.Logger
}

func NewEchoHandler(log *logger.Logger) *EchoHandler {
	return &EchoHandler{log: log.With("handler", "EchoHandler")}
}

type echoPayload struct {
	Method   string              `json:"method"`
	Path     string              `json:"path"`
	URL      string              `json:"url"`
	Query    map[string][]string `json:"query"`
	Headers  map[string][]string `json:"headers"`
	IP       string              `json:"ip"`
	Source   string              `json:"source"`
	Protocol string              `json:"protocol"`
	Secure   bool                `json:"secure"`
	Body     any                 `json:"body,omitempty"`
}

func (h *EchoHandler) Echo(c *gin.Context) {
	payload := echoPayload{
		Method:   c.Request.Method,
		Path:     c.Request.URL.Path,
		URL:      c.Request.URL.String(),
		Query:    c.Request.URL.Query(),
		Headers:  c.Request.Header,
		IP:       c.ClientIP(),
		Source:   c.Request.UserAgent(),
		Protocol: c.Request.Proto,
		Secure:   c.Request.TLS != nil,
	}
	if raw, err := io.ReadAll(c.Request.Body); err == nil && len(raw) > 0 {
		var body any
		if json.Unmarshal(raw, &body) == nil {
			payload.Body = body
		} else {
			payload.Body = string(raw)
		}
	}
	h.log.Info("test request", "method", payload.Method, "path", payload.Path, "ip", payload.IP)
	RespondOK(c, payload)
}
