package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/h2kv/h2kv"
	"github.com/h2kv/h2kv/metrics"
)

// Default and maximum page sizes of GET /.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

type Service interface {
	Head(ctx context.Context, path, accept string) (h2kv.Meta, error)
	Get(ctx context.Context, path, accept string) (h2kv.Record, error)
	Put(ctx context.Context, obj h2kv.PutObject) (h2kv.PutResult, error)
	Delete(ctx context.Context, path string) ([]h2kv.Meta, error)
	List(ctx context.Context, query h2kv.ListQuery) (h2kv.ListResult, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" validate:"min=0"`
}

type HandlerConfig struct {
	// MaxUploadSize limits PUT bodies in bytes. Zero means no limit.
	MaxUploadSize int64
	CORS          CORSConfig
	// Metrics defaults to a no-op implementation.
	Metrics metrics.HTTPMetrics
	// Logger enables request logging when set.
	Logger *slog.Logger
}

// Handler provides HTTP handlers for the key space.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewHTTPMetrics(nil)
	}
	return &Handler{
		config:  cfg,
		service: service,
	}
}

// Router returns an http.Handler serving the key space. GET / lists
// records; every other path addresses a resource.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(MetricsMiddleware(h.config.Metrics))
	if h.config.Logger != nil {
		r.Use(RequestLogger(h.config.Logger))
	}

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/", h.handleList)
	r.Head("/*", h.handleHead)
	r.Get("/*", h.handleGet)
	r.Put("/*", h.handlePut)
	r.Delete("/*", h.handleDelete)

	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	limitStr := r.URL.Query().Get("limit")
	cursor := r.URL.Query().Get("cursor")

	limit := DefaultListLimit
	if limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_parameter", "limit must be an integer")
			return
		}
		limit = max(1, min(MaxListLimit, parsed))
	}

	query := h2kv.ListQuery{
		Prefix: prefix,
		Limit:  limit,
		Cursor: cursor,
	}

	result, err := h.service.List(r.Context(), query)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

// setRepresentationHeaders sets the headers GET and HEAD share.
func setRepresentationHeaders(w http.ResponseWriter, meta h2kv.Meta) {
	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("ETag", meta.ETag())
	w.Header().Set("Content-Location", h2kv.EscapePath(meta.Key, meta.Ext))
}

func (h *Handler) handleHead(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Vary", "Accept")

	meta, err := h.service.Head(r.Context(), r.URL.EscapedPath(), r.Header.Get("Accept"))
	if err != nil {
		w.WriteHeader(StatusFor(err))
		return
	}

	setRepresentationHeaders(w, meta)
	if !meta.ModTime.IsZero() {
		w.Header().Set("Last-Modified", meta.ModTime.UTC().Format(http.TimeFormat))
	}

	if inm := r.Header.Get("If-None-Match"); inm != "" && etagListContains(inm, meta.ETag()) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Vary", "Accept")

	rec, err := h.service.Get(r.Context(), r.URL.EscapedPath(), r.Header.Get("Accept"))
	if err != nil {
		HandleError(w, err)
		return
	}

	setRepresentationHeaders(w, rec.Meta)

	http.ServeContent(w, r, "", rec.ModTime, bytes.NewReader(rec.Content))
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if h.config.MaxUploadSize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	}

	content, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			HandleError(w, ErrBodyTooLarge)
			return
		}
		WriteError(w, http.StatusBadRequest, "bad_request", "Failed to read request body")
		return
	}

	obj := h2kv.PutObject{
		Path:        r.URL.EscapedPath(),
		ContentType: r.Header.Get("Content-Type"),
		IfMatch:     r.Header.Get("If-Match"),
		Content:     content,
	}

	res, err := h.service.Put(r.Context(), obj)
	if err != nil {
		HandleError(w, err)
		return
	}

	w.Header().Set("ETag", res.Meta.ETag())
	w.Header().Set("Content-Location", h2kv.EscapePath(res.Meta.Key, res.Meta.Ext))

	if res.Created {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Delete(r.Context(), r.URL.EscapedPath()); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func etagListContains(header, etag string) bool {
	for candidate := range strings.SplitSeq(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
