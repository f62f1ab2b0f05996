package server

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/robdanz/tf-cf-dni-list/internal/correlate"
	"github.com/robdanz/tf-cf-dni-list/internal/ingest"
	"github.com/robdanz/tf-cf-dni-list/internal/telemetry"
)

// secretHeader carries the pre-shared ingestion secret on every batch
// delivery.
const secretHeader = "X-Ingest-Token"

// maxBodyBytes caps an inbound batch body after transport decompression
// is accounted for.
const maxBodyBytes = 32 << 20

var tracer = otel.Tracer("github.com/robdanz/tf-cf-dni-list/internal/server")

type handler struct {
	engine  *correlate.Engine
	emitter *telemetry.Emitter
	secret  string
}

// errorBatchResponse is the wire shape for the error-event endpoint.
type errorBatchResponse struct {
	OK                bool     `json:"ok"`
	PendingSessionIDs int      `json:"pending_session_ids"`
	MatchedSessionIDs int      `json:"matched_session_ids"`
	AddedHostnames    []string `json:"added_hostnames"`
	SkippedExisting   int      `json:"skipped_existing"`
	Errors            []string `json:"errors,omitempty"`
}

// sessionBatchResponse is the wire shape for the session-event endpoint.
type sessionBatchResponse struct {
	OK              bool     `json:"ok"`
	Added           int      `json:"added"`
	AddedHostnames  []string `json:"added_hostnames"`
	SkippedExisting int      `json:"skipped_existing"`
	StoredForLater  int      `json:"stored_for_later"`
	Errors          []string `json:"errors,omitempty"`
}

// requireSecret gates a handler behind the pre-shared secret header using
// a constant-time comparison.
func (h *handler) requireSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("dnilist ok\n"))
}

func (h *handler) handleErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := tracer.Start(r.Context(), "ingest.errors")
	defer span.End()

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raws, err := ingest.Decode(body, r.Header.Get("Content-Encoding"))
	if err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	records := correlate.ParseErrorRecords(raws)
	span.SetAttributes(attribute.Int("batch.records", len(records)))

	summary := h.engine.IngestErrors(ctx, records)
	observeErrorBatch(summary)
	if err := h.emitter.EmitErrorBatch(ctx, summary); err != nil {
		log.Printf("emit error-batch telemetry: %v", err)
	}

	writeJSON(w, batchStatus(summary.OK()), errorBatchResponse{
		OK:                summary.OK(),
		PendingSessionIDs: summary.PendingSessionIDs,
		MatchedSessionIDs: summary.MatchedSessionIDs,
		AddedHostnames:    nonNil(summary.AddedHostnames),
		SkippedExisting:   summary.SkippedExisting,
		Errors:            summary.Errors,
	})
}

func (h *handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := tracer.Start(r.Context(), "ingest.sessions")
	defer span.End()

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raws, err := ingest.Decode(body, r.Header.Get("Content-Encoding"))
	if err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	records := correlate.ParseSessionRecords(raws)
	span.SetAttributes(attribute.Int("batch.records", len(records)))

	summary := h.engine.IngestSessions(ctx, records)
	observeSessionBatch(summary)
	if err := h.emitter.EmitSessionBatch(ctx, summary); err != nil {
		log.Printf("emit session-batch telemetry: %v", err)
	}

	writeJSON(w, batchStatus(summary.OK()), sessionBatchResponse{
		OK:              summary.OK(),
		Added:           summary.Added,
		AddedHostnames:  nonNil(summary.AddedHostnames),
		SkippedExisting: summary.SkippedExisting,
		StoredForLater:  summary.StoredForLater,
		Errors:          summary.Errors,
	})
}

// batchStatus maps the two-class batch outcome onto HTTP: 200 for full
// success, 207 for partial. Dependency failures never surface as 5xx so
// the upstream delivery system does not go into retry backoff.
func batchStatus(ok bool) int {
	if ok {
		return http.StatusOK
	}
	return http.StatusMultiStatus
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
