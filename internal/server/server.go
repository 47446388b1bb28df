package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cuzic/webreq-sniffer-sub000/internal/ctxkeys"
	"github.com/cuzic/webreq-sniffer-sub000/internal/logger"
	"github.com/cuzic/webreq-sniffer-sub000/internal/service"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/api"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

// Server 控制协议的 HTTP 实现。
// 所有操作返回成功负载或 {success:false, error}。
type Server struct {
	svc api.Service
	log logger.Logger
}

func New(svc api.Service, l logger.Logger) *Server {
	if l == nil {
		l = logger.NewNop()
	}
	return &Server{svc: svc, log: l}
}

// Router 构建路由
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.traceID)

	r.Route("/api", func(r chi.Router) {
		r.Post("/capture/start", s.handleStartCapture)
		r.Post("/capture/stop", s.handleStopCapture)
		r.Get("/status", s.handleStatus)
		r.Get("/log", s.handleGetLog)
		r.Post("/log/clear", s.handleClearLog)
		r.Get("/settings", s.handleGetSettings)
		r.Patch("/settings", s.handleUpdateSettings)
	})
	return r
}

// traceID 为每个请求注入链路 ID
func (s *Server) traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ctxkeys.TraceIDKey{}, uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type startCaptureRequest struct {
	Scope       model.CaptureScope `json:"scope"`
	ActiveTabID *int               `json:"activeTabId"`
}

func (s *Server) handleStartCapture(w http.ResponseWriter, r *http.Request) {
	var req startCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "无效的请求体: "+err.Error())
		return
	}
	if req.Scope == "" {
		req.Scope = model.ScopeAllTabs
	}
	tabID := model.NoTabID
	if req.ActiveTabID != nil {
		tabID = *req.ActiveTabID
	}
	if err := s.svc.StartCapture(r.Context(), req.Scope, tabID); err != nil {
		// 参数错误归调用方，其余按内部故障处理
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidArgument) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleStopCapture(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.StopCapture(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"isCapturing": st.IsCapturing,
		"scope":       st.Scope,
		"activeTabId": st.ActiveTabID,
		"entryCount":  st.EntryCount,
		"entries":     st.Entries,
		"stats":       st.Stats,
	})
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.GetLog(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"entryCount": len(entries),
		"entries":    entries,
	})
}

func (s *Server) handleClearLog(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearLog(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.GetSettings(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": settings})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch model.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "无效的请求体: "+err.Error())
		return
	}
	settings, err := s.svc.UpdateSettings(r.Context(), patch)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": settings})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Err(err, "写入响应失败")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
