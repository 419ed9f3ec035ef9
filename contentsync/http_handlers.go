// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// HTTPContentHandlers provides HTTP handlers for the content API
type HTTPContentHandlers struct {
	service *ContentService
	logger  *slog.Logger
}

// NewHTTPContentHandlers creates a new instance of content handlers
func NewHTTPContentHandlers(service *ContentService, logger *slog.Logger) *HTTPContentHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPContentHandlers{
		service: service,
		logger:  logger,
	}
}

// Register mounts every content route on mux. Device routes require any
// valid token, admin routes require RoleAdmin.
func (h *HTTPContentHandlers) Register(mux *http.ServeMux, jwtAuth *JWTAuth) {
	device := func(fn http.HandlerFunc) http.Handler { return jwtAuth.Middleware(fn) }
	admin := func(fn http.HandlerFunc) http.Handler { return jwtAuth.Middleware(RequireRole(RoleAdmin, fn)) }

	mux.Handle("/content/words", device(h.HandleListWords))
	mux.Handle("/content/flashcards", device(h.HandleListFlashcards))
	mux.Handle("/content/exams", device(h.HandleListExams))
	mux.Handle("/content/version/check", device(h.HandleCheckVersion))
	mux.Handle("/content/version/latest", device(h.HandleLatestVersion))

	mux.Handle("/admin/content/words", admin(h.HandleUpsertWords))
	mux.Handle("/admin/content/flashcards", admin(h.HandleUpsertFlashcards))
	mux.Handle("/admin/content/exams", admin(h.HandleUpsertExams))
	mux.Handle("/admin/versions", admin(h.HandlePublishVersion))
}

// HandleListWords serves one page of words
func (h *HTTPContentHandlers) HandleListWords(w http.ResponseWriter, r *http.Request) {
	handleList(h, w, r, EntityWords, h.service.ListWords)
}

// HandleListFlashcards serves one page of flashcards
func (h *HTTPContentHandlers) HandleListFlashcards(w http.ResponseWriter, r *http.Request) {
	handleList(h, w, r, EntityFlashcards, h.service.ListFlashcards)
}

// HandleListExams serves one page of exams
func (h *HTTPContentHandlers) HandleListExams(w http.ResponseWriter, r *http.Request) {
	handleList(h, w, r, EntityExams, h.service.ListExams)
}

func handleList[T any](
	h *HTTPContentHandlers,
	w http.ResponseWriter,
	r *http.Request,
	entity EntityType,
	list func(ctx context.Context, after string, limit int) (*ContentPage[T], error),
) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only GET method is allowed")
		return
	}

	after := r.URL.Query().Get("after")

	limit := DefaultPageLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, CodeInvalidRequest, "limit must be an integer")
			return
		}
		if parsedLimit < 1 || parsedLimit > MaxPageLimit {
			h.writeError(w, http.StatusBadRequest, CodeInvalidRequest, "limit must be between 1 and "+strconv.Itoa(MaxPageLimit))
			return
		}
		limit = parsedLimit
	}

	page, err := list(r.Context(), after, limit)
	if err != nil {
		h.logger.Error("Failed to list content", "entity", entity, "after", after, "error", err)
		h.writeError(w, http.StatusInternalServerError, CodeFetchFailed, "Failed to fetch "+string(entity))
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// HandleCheckVersion classifies the latest published version for ?build=&app_version=
func (h *HTTPContentHandlers) HandleCheckVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only GET method is allowed")
		return
	}

	build := int64(0)
	if buildStr := r.URL.Query().Get("build"); buildStr != "" {
		parsed, err := strconv.ParseInt(buildStr, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, CodeInvalidRequest, "build must be an integer")
			return
		}
		if parsed < 0 {
			h.writeError(w, http.StatusBadRequest, CodeInvalidRequest, "build must be >= 0")
			return
		}
		build = parsed
	}
	appVersion := r.URL.Query().Get("app_version")

	resp, err := h.service.CheckVersion(r.Context(), build, appVersion)
	if err != nil {
		h.logger.Error("Failed to check version", "build", build, "app_version", appVersion, "error", err)
		h.writeError(w, http.StatusInternalServerError, CodeFetchFailed, "Failed to check version")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleLatestVersion returns the latest published version, if any
func (h *HTTPContentHandlers) HandleLatestVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only GET method is allowed")
		return
	}

	latest, err := h.service.LatestVersion(r.Context())
	if err != nil {
		h.logger.Error("Failed to load latest version", "error", err)
		h.writeError(w, http.StatusInternalServerError, CodeFetchFailed, "Failed to load latest version")
		return
	}
	if latest == nil {
		h.writeJSON(w, http.StatusOK, VersionCheckResponse{Status: UpdateNone, Reason: "no published dataset version"})
		return
	}
	h.writeJSON(w, http.StatusOK, VersionCheckResponse{Latest: latest, Status: UpdateNone, Reason: "latest published version"})
}

// HandleUpsertWords imports a JSON array of words, or an XLSX sheet when the
// request Content-Type is the spreadsheet MIME type
func (h *HTTPContentHandlers) HandleUpsertWords(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), xlsxContentType) {
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only POST method is allowed")
			return
		}
		words, err := ImportWordsXLSX(r.Body, r.URL.Query().Get("sheet"))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
			return
		}
		h.finishUpsert(w, EntityWords, len(words), func() (int, error) {
			return h.service.UpsertWords(r.Context(), words)
		})
		return
	}
	handleUpsert(h, w, r, EntityWords, h.service.UpsertWords)
}

// HandleUpsertFlashcards imports a JSON array of flashcards
func (h *HTTPContentHandlers) HandleUpsertFlashcards(w http.ResponseWriter, r *http.Request) {
	handleUpsert(h, w, r, EntityFlashcards, h.service.UpsertFlashcards)
}

// HandleUpsertExams imports a JSON array of exams
func (h *HTTPContentHandlers) HandleUpsertExams(w http.ResponseWriter, r *http.Request) {
	handleUpsert(h, w, r, EntityExams, h.service.UpsertExams)
}

func handleUpsert[T any](
	h *HTTPContentHandlers,
	w http.ResponseWriter,
	r *http.Request,
	entity EntityType,
	upsert func(ctx context.Context, items []T) (int, error),
) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only POST method is allowed")
		return
	}

	var items []T
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Failed to parse "+string(entity)+" payload")
		return
	}
	h.finishUpsert(w, entity, len(items), func() (int, error) { return upsert(r.Context(), items) })
}

func (h *HTTPContentHandlers) finishUpsert(w http.ResponseWriter, entity EntityType, count int, run func() (int, error)) {
	written, err := run()
	if err != nil {
		if errors.Is(err, ErrInvalidContent) {
			h.writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
			return
		}
		h.logger.Error("Failed to import content", "entity", entity, "count", count, "error", err)
		h.writeError(w, http.StatusInternalServerError, CodeImportFailed, "Failed to import "+string(entity))
		return
	}
	h.writeJSON(w, http.StatusOK, UpsertResponse{Entity: entity, Written: written})
}

// HandlePublishVersion publishes a new dataset version
func (h *HTTPContentHandlers) HandlePublishVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only POST method is allowed")
		return
	}

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Failed to parse publish request")
		return
	}

	v, err := h.service.PublishVersion(r.Context(), req)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusCreated, v)
	case errors.Is(err, ErrInvalidVersion):
		h.writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.Is(err, ErrVersionExists):
		h.writeError(w, http.StatusConflict, CodeConflict, err.Error())
	default:
		h.logger.Error("Failed to publish version", "version", req.Version, "error", err)
		h.writeError(w, http.StatusInternalServerError, CodePublishFailed, "Failed to publish version")
	}
}

func (h *HTTPContentHandlers) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError writes a standardized error response
func (h *HTTPContentHandlers) writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}
	_ = json.NewEncoder(w).Encode(errorResponse)

	h.logger.Debug("HTTP error response",
		"status_code", statusCode,
		"error_code", errorCode,
		"message", message)
}
