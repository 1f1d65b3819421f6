package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fsawadogo/sqordia-sub000/internal/export"
	"github.com/fsawadogo/sqordia-sub000/internal/search"
	"github.com/fsawadogo/sqordia-sub000/internal/snapshot"
	"github.com/fsawadogo/sqordia-sub000/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/users" {
		var body struct {
			DisplayName string `json:"displayName"`
			Email       string `json:"email"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		user, err := s.service.EnsureUser(r.Context(), body.DisplayName, body.Email)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, userView(user))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		filterType := strings.TrimSpace(r.URL.Query().Get("type"))
		planID := strings.TrimSpace(r.URL.Query().Get("planId"))
		limit, ok := queryInt(w, r, "limit", 20)
		if !ok {
			return
		}
		offset, ok := queryInt(w, r, "offset", 0)
		if !ok {
			return
		}
		payload := s.service.Search(search.Query{
			Text:         q,
			FilterType:   search.ResultType(filterType),
			FilterPlanID: planID,
			Limit:        limit,
			Offset:       offset,
		})
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.URL.Path == "/api/plans" {
		switch r.Method {
		case http.MethodGet:
			ownerID := strings.TrimSpace(r.URL.Query().Get("ownerId"))
			plans, err := s.service.ListPlans(r.Context(), ownerID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list plans", nil)
				return
			}
			views := make([]map[string]any, 0, len(plans))
			for _, p := range plans {
				views = append(views, planView(p))
			}
			writeJSON(w, http.StatusOK, map[string]any{"plans": views})
			return
		case http.MethodPost:
			var body struct {
				OwnerID     string `json:"ownerId"`
				Title       string `json:"title"`
				Description string `json:"description"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			plan, err := s.service.CreatePlan(r.Context(), body.OwnerID, body.Title, body.Description)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, planView(plan))
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "plans" {
		s.handlePlans(w, r, parts[2], parts)
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "sections" && parts[3] == "content" {
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		section, err := s.service.UpdateSectionContent(r.Context(), parts[2], body.Content)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, sectionView(section))
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handlePlans(w http.ResponseWriter, r *http.Request, planID string, parts []string) {
	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			plan, err := s.service.GetPlan(r.Context(), planID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, planView(plan))
			return
		case http.MethodPut:
			var body struct {
				Title       string `json:"title"`
				Description string `json:"description"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			plan, err := s.service.UpdatePlan(r.Context(), planID, body.Title, body.Description)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, planView(plan))
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 4 && parts[3] == "sections" {
		switch r.Method {
		case http.MethodGet:
			sections, err := s.service.ListSections(r.Context(), planID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list sections", nil)
				return
			}
			views := make([]map[string]any, 0, len(sections))
			for _, sec := range sections {
				views = append(views, sectionView(sec))
			}
			writeJSON(w, http.StatusOK, map[string]any{"sections": views})
			return
		case http.MethodPost:
			var body struct {
				Title     string `json:"title"`
				Content   string `json:"content"`
				SortOrder int    `json:"sortOrder"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			section, err := s.service.AddSection(r.Context(), planID, body.Title, body.Content, body.SortOrder)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, sectionView(section))
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 4 && parts[3] == "export" && r.Method == http.MethodPost {
		s.handleExport(w, r, planID)
		return
	}

	if len(parts) == 4 && parts[3] == "activity" && r.Method == http.MethodGet {
		limit, ok := queryInt(w, r, "limit", 50)
		if !ok {
			return
		}
		entries, err := s.service.Activity(r.Context(), planID, limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		views := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			views = append(views, activityView(e))
		}
		writeJSON(w, http.StatusOK, map[string]any{"activity": views})
		return
	}

	if len(parts) == 4 && parts[3] == "snapshots" && r.Method == http.MethodGet {
		limit, ok := queryInt(w, r, "limit", 20)
		if !ok {
			return
		}
		commits, err := s.service.SnapshotHistory(r.Context(), planID, limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		if commits == nil {
			commits = []snapshot.CommitInfo{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshots": commits})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, planID string) {
	var body struct {
		Format             string    `json:"format"`
		IncludeTitlePage   bool      `json:"includeTitlePage"`
		IncludeTOC         bool      `json:"includeTableOfContents"`
		IncludePageNumbers bool      `json:"includePageNumbers"`
		SectionIDs         *[]string `json:"sectionIds"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	opts := export.Options{
		Format:             export.Format(strings.ToLower(strings.TrimSpace(body.Format))),
		IncludeTitlePage:   body.IncludeTitlePage,
		IncludeTOC:         body.IncludeTOC,
		IncludePageNumbers: body.IncludePageNumbers,
	}
	// An absent field means every section; an explicit empty list means none.
	if body.SectionIDs != nil {
		opts.SectionIDs = *body.SectionIDs
		if opts.SectionIDs == nil {
			opts.SectionIDs = []string{}
		}
	}

	result, err := s.service.ExportPlan(r.Context(), planID, opts)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", key+" must be an integer", nil)
		return 0, false
	}
	return parsed, true
}

func userView(u store.User) map[string]any {
	return map[string]any{
		"id":          u.ID,
		"displayName": u.DisplayName,
		"email":       u.Email,
		"createdAt":   u.CreatedAt,
	}
}

func planView(p store.Plan) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"ownerId":     p.OwnerID,
		"title":       p.Title,
		"description": p.Description,
		"createdAt":   p.CreatedAt,
		"updatedAt":   p.UpdatedAt,
	}
}

func sectionView(sec store.PlanSection) map[string]any {
	return map[string]any{
		"id":        sec.ID,
		"planId":    sec.PlanID,
		"title":     sec.Title,
		"content":   sec.Content,
		"sortOrder": sec.SortOrder,
		"updatedAt": sec.UpdatedAt,
	}
}

func activityView(e store.ActivityEntry) map[string]any {
	return map[string]any{
		"id":          e.ID,
		"userId":      e.UserID,
		"planId":      e.PlanID,
		"actionType":  e.ActionType,
		"description": e.Description,
		"createdAt":   e.CreatedAt,
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
