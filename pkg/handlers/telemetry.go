package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

// maxIngestBody caps a single ingest request at 16 MiB.
const maxIngestBody = 16 << 20

// TelemetryHandler handles telemetry ingest and fleet read endpoints.
type TelemetryHandler struct {
	telemetryService services.TelemetryService
	ingestService    services.IngestService
	logger           *zap.Logger
}

// NewTelemetryHandler creates a new telemetry handler.
func NewTelemetryHandler(telemetryService services.TelemetryService, ingestService services.IngestService, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{
		telemetryService: telemetryService,
		ingestService:    ingestService,
		logger:           logger,
	}
}

// RegisterRoutes registers the telemetry handler's routes on the given mux.
func (h *TelemetryHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/telemetry/events",
		authMiddleware.RequireAuth(h.IngestEvents))
	mux.HandleFunc("GET /api/telemetry/summary",
		authMiddleware.RequireAuth(h.Summary))
	mux.HandleFunc("GET /api/networks",
		authMiddleware.RequireAuth(h.ListNetworks))
	mux.HandleFunc("GET /api/networks/{nid}",
		authMiddleware.RequireAuth(h.GetNetwork))
	mux.HandleFunc("GET /api/networks/{nid}/access-points",
		authMiddleware.RequireAuth(h.ListAccessPoints))
}

// IngestEvents handles POST /api/telemetry/events.
// Accepts either a JSON array of event envelopes or newline-delimited JSON.
func (h *TelemetryHandler) IngestEvents(w http.ResponseWriter, r *http.Request) {
	events, err := decodeEventBody(r.Body)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Body must be a JSON array or newline-delimited JSON events"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if len(events) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "empty_batch", "At least one event is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.ingestService.Ingest(r.Context(), events)
	if err != nil {
		h.logger.Error("Failed to ingest telemetry events",
			zap.Int("events", len(events)),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "ingest_failed", "Failed to ingest telemetry events"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: result}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Summary handles GET /api/telemetry/summary.
// Optional query parameter network_id narrows the summary to one network.
func (h *TelemetryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var networkID *uuid.UUID
	if raw := r.URL.Query().Get("network_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_network_id", "Invalid network ID format"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		networkID = &id
	}

	summary, err := h.telemetryService.FleetSummary(r.Context(), networkID)
	if err != nil {
		h.logger.Error("Failed to load fleet summary", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to load fleet summary"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: summary}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListNetworks handles GET /api/networks.
func (h *TelemetryHandler) ListNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := h.telemetryService.ListNetworks(r.Context())
	if err != nil {
		h.logger.Error("Failed to list networks", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list networks"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: networks}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetNetwork handles GET /api/networks/{nid}.
func (h *TelemetryHandler) GetNetwork(w http.ResponseWriter, r *http.Request) {
	networkID, ok := ParseNetworkID(w, r, h.logger)
	if !ok {
		return
	}

	network, err := h.telemetryService.GetNetwork(r.Context(), networkID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Network not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get network",
			zap.String("network_id", networkID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get network"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: network}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListAccessPoints handles GET /api/networks/{nid}/access-points.
func (h *TelemetryHandler) ListAccessPoints(w http.ResponseWriter, r *http.Request) {
	networkID, ok := ParseNetworkID(w, r, h.logger)
	if !ok {
		return
	}

	aps, err := h.telemetryService.ListAccessPoints(r.Context(), networkID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Network not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to list access points",
			zap.String("network_id", networkID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list access points"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: aps}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// decodeEventBody reads one ingest request body as either a JSON array or
// newline-delimited JSON, one envelope per line.
func decodeEventBody(body io.Reader) ([]json.RawMessage, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxIngestBody))
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var events []json.RawMessage
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var events []json.RawMessage
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), maxIngestBody)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		events = append(events, json.RawMessage(append([]byte(nil), line...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
