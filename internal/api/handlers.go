package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mdql/internal/checksum"
	"github.com/starford/mdql/internal/taskservice"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *taskservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *taskservice.Service) *Handler {
	return &Handler{svc: svc}
}

// filePath extracts the file path from the wildcard part of the URL.
// Supports encoded slashes from OpenAPI clients (e.g. projects%2Ftodo.md).
func filePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// decode reads a JSON body. Numbers are kept as json.Number so integer
// predicates survive decoding into map[string]any.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListFiles handles GET /api/files.
//
//	@Summary		List task files with task counts
//	@Tags			files
//	@Produce		json
//	@Success		200	{object}	FileListResponse
//	@Security		BearerAuth
//	@Router			/files [get]
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.ListFiles(r.Context())
	if err != nil {
		writeError(w, "list files", err)
		return
	}
	writeJSON(w, http.StatusOK, FileListResponse{Files: files, Total: len(files)})
}

// GetFile handles GET /api/files/*.
//
//	@Summary		Get the parsed tasks and sections of a file
//	@Tags			files
//	@Produce		json
//	@Param			path	path		string	true	"File path"
//	@Success		200		{object}	File
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [get]
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	f, err := h.svc.Load(r.Context(), path)
	if err != nil {
		writeError(w, "get file", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(f.Checksum))
	writeJSON(w, http.StatusOK, f)
}

// Summary handles GET /api/summary/*.
//
//	@Summary		Per-section completion summary of a file
//	@Tags			files
//	@Produce		json
//	@Param			path	path		string	true	"File path"
//	@Success		200		{object}	Summary
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/summary/{path} [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	s, err := h.svc.Summary(r.Context(), path)
	if err != nil {
		writeError(w, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Query handles POST /api/query.
//
//	@Summary		Filter the tasks of a file with structured predicates
//	@Tags			query
//	@Accept			json
//	@Produce		json
//	@Param			body	body		QueryRequest	true	"Path and predicates"
//	@Success		200		{object}	QueryResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/query [post]
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	res, err := h.svc.Query(r.Context(), req.Path, req.Filter)
	if err != nil {
		writeError(w, "query", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MQL handles POST /api/mql.
//
//	@Summary		Run a SELECT ... FROM ... WHERE ... query
//	@Tags			query
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MQLRequest	true	"Query"
//	@Success		200		{object}	QueryResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mql [post]
func (h *Handler) MQL(w http.ResponseWriter, r *http.Request) {
	var req MQLRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query is required"))
		return
	}
	res, err := h.svc.RunMQL(r.Context(), req.Path, req.Query, req.Limit)
	if err != nil {
		writeError(w, "mql", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Mutate handles POST /api/mutate.
//
//	@Summary		Edit one task line with optimistic concurrency
//	@Tags			edit
//	@Accept			json
//	@Produce		json
//	@Param			If-Match	header	string			false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	MutateRequest	true	"Path and mutation"
//	@Success		200		{object}	File
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mutate [post]
func (h *Handler) Mutate(w http.ResponseWriter, r *http.Request) {
	var req MutateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	ifMatch := req.IfMatch
	if ifMatch == "" {
		ifMatch = r.Header.Get("If-Match")
	}
	f, err := h.svc.Mutate(r.Context(), req.Path, req.Mutation, ifMatch)
	if err != nil {
		writeError(w, "mutate", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(f.Checksum))
	writeJSON(w, http.StatusOK, f)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across every task in the vault
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
