package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/iwvelando/tireintel/internal/config"
	"github.com/iwvelando/tireintel/internal/dashboard"
	"github.com/iwvelando/tireintel/internal/export"
	"github.com/iwvelando/tireintel/internal/forecast"
	"github.com/iwvelando/tireintel/pkg/constants"
	"github.com/iwvelando/tireintel/pkg/output"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed static/*
var staticFiles embed.FS

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Options wires the handler to its collaborators.
type Options struct {
	MaxUploadSize  int64
	Version        string
	AllowedOrigins []string
	// Dashboards defaults to a service over the built-in presets.
	Dashboards *dashboard.Service
	Prices     dashboard.PriceIndexSource
	News       dashboard.NewsSource
}

type handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	version       string
	dashboards    *dashboard.Service
	prices        dashboard.PriceIndexSource
	news          dashboard.NewsSource
}

// NewHandler constructs the HTTP handler that serves the web UI and the
// dashboard API.
func NewHandler(logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxUploadSize := opts.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	dashboards := opts.Dashboards
	if dashboards == nil {
		dashboards = dashboard.NewService(&config.Configuration{Presets: config.DefaultPresets()}, opts.Prices, opts.News, nil, 0, logger)
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &handler{
		logger:        logger,
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
		dashboards:    dashboards,
		prices:        opts.Prices,
		news:          opts.News,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(h.accessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", h.handleVersion)
		r.Get("/presets", h.handlePresets)
		r.Get("/dashboard/{preset}", h.handleDashboard)
		r.Get("/dashboard/{preset}/export.xlsx", h.handleDashboardExport)
		r.Post("/forecast", h.handleForecast)
		r.Get("/price-index", h.handlePriceIndex)
		r.Get("/news", h.handleNews)
		r.Post("/config/export", h.handleConfigExport)
	})

	// Static assets (web UI)
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("failed to prepare embedded static files: %v", err))
	}
	r.Handle("/*", http.FileServer(http.FS(sub)))

	return r
}

// requestID propagates a caller supplied UUID request id or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.logger.Info("http request",
			zap.String("op", "server.accessLog"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handlePresets(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"presets": h.dashboards.Presets(),
	})
}

func (h *handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	view, ok := h.buildDashboard(w, r, "server.handleDashboard")
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *handler) handleDashboardExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDashboardExport"
	view, ok := h.buildDashboard(w, r, op)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, view); err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to export dashboard: %v", err), op)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", view.Preset.Name+".xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("failed to write workbook", zap.String("op", op), zap.Error(err))
	}
}

func (h *handler) buildDashboard(w http.ResponseWriter, r *http.Request, op string) (*dashboard.View, bool) {
	name := chi.URLParam(r, "preset")
	view, err := h.dashboards.Build(r.Context(), name)
	switch {
	case errors.Is(err, dashboard.ErrUnknownPreset):
		h.respondErrorWithOp(w, http.StatusNotFound, err.Error(), op)
		return nil, false
	case errors.Is(err, forecast.ErrInvalidConfig):
		h.respondErrorWithOp(w, http.StatusUnprocessableEntity, err.Error(), op)
		return nil, false
	case err != nil:
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to build dashboard: %v", err), op)
		return nil, false
	}
	return view, true
}

type forecastResponse struct {
	Preset     dashboard.PresetSummary  `json:"preset"`
	Records    []forecast.MonthlyRecord `json:"records"`
	Cards      []dashboard.Card         `json:"cards"`
	Annual     []dashboard.AnnualTotal  `json:"annual"`
	CSV        string                   `json:"csv"`
	Warnings   []string                 `json:"warnings,omitempty"`
	Duration   string                   `json:"duration"`
	ConfigYAML string                   `json:"configYaml"`
}

// handleForecast generates a series from a JSON or YAML preset body. With
// ?preset=NAME the body only overrides fields of that preset.
func (h *handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleForecast"
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize), op)
			return
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to read request: %v", err), op)
		return
	}

	var preset config.PresetConfig
	if base := strings.TrimSpace(r.URL.Query().Get("preset")); base != "" {
		found, ok := h.dashboards.Preset(base)
		if !ok {
			h.respondErrorWithOp(w, http.StatusNotFound, fmt.Sprintf("%v: %s", dashboard.ErrUnknownPreset, base), op)
			return
		}
		preset = found
	} else if len(bytes.TrimSpace(body)) == 0 {
		h.respondErrorWithOp(w, http.StatusBadRequest, "missing preset configuration", op)
		return
	}

	// JSON is valid YAML, so one decoder serves both content types.
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
		if err := yaml.Unmarshal(trimmed, &preset); err != nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode preset: %v", err), op)
			return
		}
	}
	if preset.Name == "" {
		preset.Name = "custom"
	}

	records, err := h.dashboards.Records(r.Context(), preset)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to compute forecast: %v", err), op)
		return
	}

	configBytes, err := yaml.Marshal(preset)
	if err != nil {
		h.logger.Warn("failed to marshal preset",
			zap.String("op", op),
			zap.Error(err),
		)
	}

	elapsed := time.Since(start)
	response := forecastResponse{
		Preset:     dashboard.Summarize(preset),
		Records:    records,
		Cards:      dashboard.BuildCards(records),
		Annual:     dashboard.AnnualTotals(records),
		CSV:        output.CsvString(records),
		Warnings:   preset.Warnings(),
		Duration:   elapsed.String(),
		ConfigYAML: string(configBytes),
	}

	h.logger.Info("forecast computed",
		zap.String("op", op),
		zap.String("preset", preset.Name),
		zap.Int("records", len(records)),
		zap.Duration("duration", elapsed),
	)
	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) handlePriceIndex(w http.ResponseWriter, r *http.Request) {
	const op = "server.handlePriceIndex"
	if h.prices == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "price index source is not configured", op)
		return
	}

	series := strings.TrimSpace(r.URL.Query().Get("series"))
	if series == "" {
		series = config.TirePPISeries
	}
	months := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("months")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid months %q", raw), op)
			return
		}
		months = n
	}

	h.writeJSON(w, http.StatusOK, h.prices.Fetch(r.Context(), series, months))
}

func (h *handler) handleNews(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleNews"
	if h.news == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "news source is not configured", op)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		query = config.DefaultNewsQuery
	}
	h.writeJSON(w, http.StatusOK, h.news.Search(r.Context(), query))
}

func (h *handler) handleConfigExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleConfigExport"
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode configuration: %v", err), op)
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}

	yamlBytes, err := marshalOrderedConfigYAML(payload)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to encode configuration: %v", err), op)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"configYaml": string(yamlBytes),
	})
}

// configKeyOrder is the section order of exported configuration files.
var configKeyOrder = []string{"logging", "output", "cache", "priceIndex", "news", "scheduler", "presets"}

func marshalOrderedConfigYAML(payload map[string]interface{}) ([]byte, error) {
	items := make([]orderedItem, 0, len(payload))
	seen := make(map[string]struct{})

	for _, key := range configKeyOrder {
		if value, ok := payload[key]; ok {
			items = append(items, orderedItem{key: key, value: value})
			seen[key] = struct{}{}
		}
	}

	remainingKeys := make([]string, 0, len(payload))
	for key := range payload {
		if _, already := seen[key]; already {
			continue
		}
		remainingKeys = append(remainingKeys, key)
	}
	sort.Strings(remainingKeys)
	for _, key := range remainingKeys {
		items = append(items, orderedItem{key: key, value: payload[key]})
	}

	ordered := orderedConfig{items: items}
	return yaml.Marshal(ordered)
}

type orderedConfig struct {
	items []orderedItem
}

type orderedItem struct {
	key   string
	value interface{}
}

func (o orderedConfig) MarshalYAML() (interface{}, error) {
	mapNode := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
	}

	for _, item := range o.items {
		keyNode := &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: item.key,
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(item.value); err != nil {
			return nil, err
		}
		mapNode.Content = append(mapNode.Content, keyNode, valueNode)
	}

	return mapNode, nil
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.String("op", "server.writeJSON"), zap.Error(err))
	}
}
