package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alexbilevskiy/tgdesk/internal/account"
)

// Source reads presentation state on behalf of HTTP handlers.
type Source interface {
	ChatList(ctx context.Context) (*account.ChatListSnapshot, error)
	OpenHistory(ctx context.Context) (*account.HistorySnapshot, error)
}

type webController struct {
	src Source
	log *slog.Logger
}

func newWebController(src Source, log *slog.Logger) *webController {
	return &webController{src: src, log: log.With("component", "web")}
}

func (wc *webController) processTgChatList(w http.ResponseWriter, req *http.Request) {
	res, err := wc.src.ChatList(req.Context())
	if err != nil {
		wc.unavailable(err, req, w)
		return
	}
	wc.render(req, w, res)
}

func (wc *webController) processTgChatHistoryOnline(w http.ResponseWriter, req *http.Request) {
	res, err := wc.src.OpenHistory(req.Context())
	if err != nil {
		wc.unavailable(err, req, w)
		return
	}
	if res.ChatID == 0 {
		errorResponse(WebError{T: "No chat", Error: "no chat is open"}, http.StatusNotFound, req, w)
		return
	}
	wc.render(req, w, res)
}

func (wc *webController) catchAll(w http.ResponseWriter, req *http.Request) {
	errorResponse(WebError{T: "Not found", Error: "unknown path " + req.URL.Path}, http.StatusNotFound, req, w)
}

func (wc *webController) render(req *http.Request, w http.ResponseWriter, data interface{}) {
	if err := renderJson(req, w, http.StatusOK, data); err != nil {
		wc.log.Warn("failed writing body", "uri", req.RequestURI, "error", err)
	}
}

func (wc *webController) unavailable(err error, req *http.Request, w http.ResponseWriter) {
	code := http.StatusServiceUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		code = http.StatusGatewayTimeout
	}
	wc.log.Warn("state not available", "uri", req.RequestURI, "error", err)
	errorResponse(WebError{T: "Unavailable", Error: err.Error()}, code, req, w)
}
