package server

import (
	"encoding/json"
	"errors"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/account_radar/internal/agent"
	"github.com/iWorld-y/account_radar/internal/service"
	"github.com/iWorld-y/account_radar/pkg/config"
	"github.com/iWorld-y/account_radar/pkg/export"
)

// NewHTTPServer 组装 HTTP 服务并挂载全部路由
func NewHTTPServer(c *config.ServerConfig, s *service.ChatService) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err == nil {
			opts = append(opts, http.Timeout(d))
		}
	}

	srv := http.NewServer(opts...)

	srv.HandleFunc("/api/chat", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			writeError(w, nethttp.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST")
			return
		}
		var req agent.TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		writeJSON(w, nethttp.StatusOK, s.Chat(r.Context(), &req))
	})

	srv.HandleFunc("/api/plan/edit", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			writeError(w, nethttp.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST")
			return
		}
		var req service.EditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		profile, err := s.Edit(r.Context(), &req)
		if err != nil {
			writeError(w, statusOf(err), agent.ErrorCode(err), err.Error())
			return
		}
		writeJSON(w, nethttp.StatusOK, profile)
	})

	srv.HandleFunc("/api/plan", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		profile, err := s.Plan(r.URL.Query().Get("session_id"), r.URL.Query().Get("company"))
		if err != nil {
			writeError(w, statusOf(err), agent.ErrorCode(err), err.Error())
			return
		}
		writeJSON(w, nethttp.StatusOK, profile)
	})

	srv.HandleFunc("/api/companies", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, map[string]interface{}{
			"companies": s.Companies(r.URL.Query().Get("session_id")),
		})
	})

	srv.HandleFunc("/api/toollog", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		after, _ := strconv.Atoi(r.URL.Query().Get("after"))
		writeJSON(w, nethttp.StatusOK, map[string]interface{}{
			"tool_calls": s.ToolCalls(r.URL.Query().Get("session_id"), after),
		})
	})

	srv.HandleFunc("/api/export", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		variant := export.Variant(r.URL.Query().Get("variant"))
		if variant == "" {
			variant = export.VariantUpdated
		}
		if variant != export.VariantInitial && variant != export.VariantUpdated {
			writeError(w, nethttp.StatusBadRequest, "BAD_REQUEST", "variant must be initial or updated")
			return
		}
		doc, err := s.Export(r.URL.Query().Get("session_id"), r.URL.Query().Get("company"), variant)
		if err != nil {
			writeError(w, statusOf(err), agent.ErrorCode(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", export.ContentType)
		w.WriteHeader(nethttp.StatusOK)
		w.Write(doc)
	})

	return srv
}

// statusOf 分类错误到 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, agent.ErrCompanyNotFound):
		return nethttp.StatusNotFound
	case errors.Is(err, agent.ErrInvalidEditField), errors.Is(err, agent.ErrAmbiguousEntity):
		return nethttp.StatusBadRequest
	default:
		return nethttp.StatusInternalServerError
	}
}

func writeJSON(w nethttp.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w nethttp.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error_code": code, "message": msg})
}
