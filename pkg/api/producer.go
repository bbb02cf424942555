package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/conductor-telemetry/conductor/pkg/codec"
	"github.com/conductor-telemetry/conductor/pkg/logging"
	"github.com/conductor-telemetry/conductor/pkg/models"
	"github.com/conductor-telemetry/conductor/pkg/schema"
	"github.com/conductor-telemetry/conductor/pkg/store"
)

// MetricsRecorder is an interface for recording ingestion metrics.
type MetricsRecorder interface {
	RecordRegistration(result string)
	RecordEmit(result string)
	RecordRowIngested()
}

// ProducerHandler handles the producer-facing API: registration, data
// emission and registration checks. Error codes travel in-band in the
// response body; the HTTP status stays 200 unless the request itself
// was malformed.
type ProducerHandler struct {
	store           store.Store
	log             *logging.Logger
	metricsRecorder MetricsRecorder
}

// NewProducerHandler creates a handler over the given store.
func NewProducerHandler(s store.Store, log *logging.Logger) *ProducerHandler {
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}
	return &ProducerHandler{store: s, log: log}
}

// SetMetricsRecorder sets the metrics recorder for the handler.
func (h *ProducerHandler) SetMetricsRecorder(recorder MetricsRecorder) {
	h.metricsRecorder = recorder
}

// RegisterRoutes registers all API routes.
func (h *ProducerHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/producer/register", h.Register).Methods("POST")
	r.HandleFunc("/v1/producer/emit", h.Emit).Methods("POST")
	r.HandleFunc("/v1/producer/check", h.Check).Methods("GET")
	r.HandleFunc("/v1/producers", h.ListProducers).Methods("GET")
	r.HandleFunc("/v1/status", h.Status).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
}

func (h *ProducerHandler) recordRegistration(code models.ErrorCode) {
	if h.metricsRecorder != nil {
		h.metricsRecorder.RecordRegistration(code.String())
	}
}

func (h *ProducerHandler) recordEmit(code models.ErrorCode) {
	if h.metricsRecorder != nil {
		h.metricsRecorder.RecordEmit(code.String())
	}
}

// Register handles producer registration in JSON or MessagePack.
func (h *ProducerHandler) Register(w http.ResponseWriter, r *http.Request) {
	format, err := codec.FromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}

	var reg models.Registration
	if err := codec.Decode(format, r.Body, &reg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := h.register(&reg)
	h.recordRegistration(result.Error)
	if err := codec.Write(w, format, http.StatusOK, result); err != nil {
		h.log.Error("failed to write registration response", map[string]interface{}{"error": err.Error()})
	}
}

func (h *ProducerHandler) register(reg *models.Registration) models.RegistrationResult {
	if code := reg.ValidateRegistration(); code != models.NoError {
		h.log.Error("producer registration rejected", map[string]interface{}{
			"name": reg.Name,
			"code": code.String(),
		})
		return models.RegistrationResult{Error: code}
	}

	id := reg.UseCustomID
	if id == "" {
		id = uuid.New().String()
	}

	schemaJSON, err := reg.Schema.JSONString()
	if err != nil {
		h.log.Error("failed to serialize schema", map[string]interface{}{"error": err.Error()})
		return models.RegistrationResult{Error: models.InternalError}
	}

	producer := &models.Producer{
		Name:   reg.Name,
		UUID:   id,
		Schema: schemaJSON,
	}
	if err := h.store.CreateProducer(producer, reg.Schema); err != nil {
		if err == store.ErrProducerExists {
			h.log.Error("producer registration rejected: id already registered", map[string]interface{}{"uuid": id})
			return models.RegistrationResult{Error: models.InvalidUUID}
		}
		h.log.Error("failed to persist producer", map[string]interface{}{"error": err.Error()})
		return models.RegistrationResult{Error: models.InternalError}
	}

	h.log.Info("producer registered", map[string]interface{}{
		"name":    reg.Name,
		"uuid":    id,
		"columns": len(reg.Schema),
	})
	return models.RegistrationResult{Error: models.NoError, UUID: id}
}

// Emit handles a data packet from a registered producer.
func (h *ProducerHandler) Emit(w http.ResponseWriter, r *http.Request) {
	format, err := codec.FromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}

	var emit models.Emit
	if err := codec.Decode(format, r.Body, &emit); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := h.emit(&emit)
	h.recordEmit(result.Error)
	if err := codec.Write(w, format, http.StatusOK, result); err != nil {
		h.log.Error("failed to write emit response", map[string]interface{}{"error": err.Error()})
	}
}

func (h *ProducerHandler) emit(emit *models.Emit) models.EmitResult {
	if emit.UUID == "" {
		h.log.Error("emit rejected: empty uuid")
		return models.EmitResult{Error: models.InvalidUUID}
	}
	if len(emit.Data) == 0 {
		h.log.Error("emit rejected: no data", map[string]interface{}{"uuid": emit.UUID})
		return models.EmitResult{Error: models.NoMembers}
	}

	producer, err := h.store.GetProducer(emit.UUID)
	if err != nil {
		if err == store.ErrProducerNotFound {
			h.log.Error("emit rejected: uuid not registered", map[string]interface{}{"uuid": emit.UUID})
			return models.EmitResult{Error: models.Unregistered}
		}
		h.log.Error("failed to look up producer", map[string]interface{}{"uuid": emit.UUID, "error": err.Error()})
		return models.EmitResult{Error: models.InternalError}
	}

	registered, err := producer.ParsedSchema()
	if err != nil {
		h.log.Error("stored schema is unreadable", map[string]interface{}{"uuid": emit.UUID, "error": err.Error()})
		return models.EmitResult{Error: models.InvalidSchema}
	}
	if len(registered) == 0 {
		return models.EmitResult{Error: models.NoMembers}
	}

	// Pull keys out in a stable order so columns and values stay paired.
	columns := make([]string, 0, len(emit.Data))
	for col := range emit.Data {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	values := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		t, ok := registered[col]
		if !ok {
			h.log.Error("emit rejected: column not in schema", map[string]interface{}{
				"uuid":   emit.UUID,
				"column": col,
			})
			return models.EmitResult{Error: models.InvalidColumnNames}
		}
		v, err := schema.Convert(emit.Data[col], t)
		if err != nil {
			h.log.Error("emit rejected: bad value", map[string]interface{}{
				"uuid":   emit.UUID,
				"column": col,
				"error":  err.Error(),
			})
			return models.EmitResult{Error: models.InvalidData}
		}
		values = append(values, v)
	}

	ts := time.Now().UTC()
	if emit.Timestamp != 0 {
		ts = time.UnixMilli(int64(emit.Timestamp)).UTC()
	}

	if err := h.store.InsertEmit(emit.UUID, columns, values, ts); err != nil {
		h.log.Error("failed to persist emit", map[string]interface{}{"uuid": emit.UUID, "error": err.Error()})
		return models.EmitResult{Error: models.InternalError}
	}
	if h.metricsRecorder != nil {
		h.metricsRecorder.RecordRowIngested()
	}
	return models.EmitResult{Error: models.NoError}
}

// Check reports via status code whether a UUID is registered. It does
// not verify that the caller's schema matches the registered one.
func (h *ProducerHandler) Check(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("uuid")
	if id == "" {
		http.Error(w, "uuid parameter is required", http.StatusBadRequest)
		return
	}

	_, err := h.store.GetProducer(id)
	switch err {
	case nil:
		w.WriteHeader(http.StatusOK)
	case store.ErrProducerNotFound:
		http.Error(w, "Producer not found", http.StatusNotFound)
	default:
		h.log.Error("failed to look up producer", map[string]interface{}{"uuid": id, "error": err.Error()})
		http.Error(w, "Failed to check producer", http.StatusInternalServerError)
	}
}

// ListProducers returns all registered producers with decoded schemas.
func (h *ProducerHandler) ListProducers(w http.ResponseWriter, r *http.Request) {
	producers, err := h.store.ListProducers()
	if err != nil {
		h.log.Error("failed to list producers", map[string]interface{}{"error": err.Error()})
		http.Error(w, "Failed to list producers", http.StatusInternalServerError)
		return
	}

	type entry struct {
		Name   string        `json:"name"`
		UUID   string        `json:"uuid"`
		Schema schema.Schema `json:"schema"`
	}
	entries := make([]entry, 0, len(producers))
	for _, p := range producers {
		s, err := p.ParsedSchema()
		if err != nil {
			h.log.Error("skipping producer with unreadable schema", map[string]interface{}{"uuid": p.UUID})
			continue
		}
		entries = append(entries, entry{Name: p.Name, UUID: p.UUID, Schema: s})
	}

	codec.Write(w, codec.JSON, http.StatusOK, map[string]interface{}{
		"producers": entries,
		"count":     len(entries),
	})
}

// Health returns the health status of the server and its store.
func (h *ProducerHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(); err != nil {
		codec.Write(w, codec.JSON, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	codec.Write(w, codec.JSON, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
