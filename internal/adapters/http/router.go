package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/printpoint/handoff/internal/core/domain"
	"github.com/printpoint/handoff/internal/core/ports"
	"github.com/printpoint/handoff/internal/observability/metrics"
)

// maxUploadBytes caps the multipart body; anything larger is refused
// before the payload is buffered.
const maxUploadBytes = 25 << 20

type Router struct {
	uploader ports.DocumentUploader
	redeemer ports.DocumentRedeemer
	reader   ports.DocumentReader
	remover  ports.DocumentRemover
	staging  ports.StagingStore
	grants   ports.GrantSigner

	service string
	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

type RouterConfig struct {
	Uploader ports.DocumentUploader
	Redeemer ports.DocumentRedeemer
	Reader   ports.DocumentReader
	Remover  ports.DocumentRemover
	Staging  ports.StagingStore
	Grants   ports.GrantSigner

	Service string
	Metrics *metrics.HTTPServerMetrics
	Logger  *slog.Logger

	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

func NewRouter(cfg RouterConfig) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		uploader: cfg.Uploader,
		redeemer: cfg.Redeemer,
		reader:   cfg.Reader,
		remover:  cfg.Remover,
		staging:  cfg.Staging,
		grants:   cfg.Grants,
		service:  cfg.Service,
		metrics:  cfg.Metrics,
		logger:   logger,

		rateLimitRPS:   cfg.RateLimitRPS,
		rateLimitBurst: cfg.RateLimitBurst,
		maxInFlight:    cfg.MaxInFlight,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/print/redeem", rt.redeem)
	mux.HandleFunc("/v1/print/artifact", rt.artifact)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, 100*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(rt.logger, handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r)
	case http.MethodGet:
		rt.listDocuments(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading upload failed"})
		return
	}

	doc, err := rt.uploader.Upload(r.Context(), ports.UploadRequest{
		CenterID:      r.FormValue("center_id"),
		FileName:      fileHeader.Filename,
		MimeType:      fileHeader.Header.Get("Content-Type"),
		Payload:       payload,
		Destination:   r.FormValue("destination"),
		UploaderName:  r.FormValue("uploader_name"),
		UploaderPhone: r.FormValue("uploader_phone"),
	})
	if err != nil {
		rt.recordUpload("error", len(payload))
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": publicErrorMessage(err)})
		return
	}

	rt.recordUpload("success", len(payload))
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	centerID := strings.TrimSpace(r.URL.Query().Get("center_id"))
	if centerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "center_id is required"})
		return
	}
	status, ok := parseStatus(r.URL.Query().Get("status"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status"})
		return
	}

	docs, err := rt.reader.ListByCenter(r.Context(), centerID, status)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": publicErrorMessage(err)})
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := rt.reader.GetByID(r.Context(), id)
		if err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": publicErrorMessage(err)})
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		if err := rt.remover.Remove(r.Context(), id); err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": publicErrorMessage(err)})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) redeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		CenterID   string `json:"center_id"`
		DocumentID string `json:"document_id"`
		Code       string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.CenterID) == "" || strings.TrimSpace(req.Code) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "center_id and code are required"})
		return
	}

	start := time.Now()
	var (
		grant *domain.PrintGrant
		err   error
	)
	if req.DocumentID != "" {
		grant, err = rt.redeemer.Redeem(r.Context(), req.CenterID, req.DocumentID, req.Code)
	} else {
		grant, err = rt.redeemer.RedeemByCode(r.Context(), req.CenterID, req.Code)
	}
	if err != nil {
		status, message := redemptionErrorBody(err)
		rt.recordRedemption(redemptionOutcome(err), time.Since(start))
		writeJSON(w, status, map[string]string{"error": message})
		return
	}

	rt.recordRedemption("success", time.Since(start))
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": grant.DocumentID,
		"file_name":   grant.FileName,
		"mime_type":   grant.MimeType,
		"handle":      grant.Handle,
		"expires_at":  grant.ExpiresAt,
	})
}

// artifact serves the staged plaintext exactly once: the staged file is
// removed after a successful transfer, so a replayed handle finds
// nothing even inside the grant window.
func (rt *Router) artifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	handle := r.URL.Query().Get("handle")
	if handle == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "handle is required"})
		return
	}

	documentID, stagedPath, err := rt.grants.Verify(handle)
	if err != nil {
		rt.recordArtifactServe("denied")
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invalid or expired handle"})
		return
	}

	data, err := rt.staging.ReadFile(r.Context(), stagedPath)
	if err != nil {
		rt.recordArtifactServe("missing")
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invalid or expired handle"})
		return
	}

	mimeType := "application/octet-stream"
	fileName := documentID
	if doc, derr := rt.reader.GetByID(r.Context(), documentID); derr == nil {
		mimeType = doc.MimeType
		fileName = doc.FileName
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	if _, err := w.Write(data); err != nil {
		rt.logger.Warn("artifact transfer interrupted", "document_id", documentID, "error", err)
		return
	}

	if err := rt.staging.Remove(r.Context(), stagedPath); err != nil {
		// The janitor sweep is the backstop for this artifact.
		rt.logger.Warn("staged artifact cleanup failed", "document_id", documentID, "error", err)
	}
	rt.recordArtifactServe("success")
}

func (rt *Router) recordUpload(outcome string, payloadBytes int) {
	if rt.metrics != nil {
		rt.metrics.RecordUpload(rt.service, outcome, payloadBytes)
	}
}

func (rt *Router) recordRedemption(outcome string, duration time.Duration) {
	if rt.metrics != nil {
		rt.metrics.RecordRedemption(rt.service, outcome, duration)
	}
}

func (rt *Router) recordArtifactServe(outcome string) {
	if rt.metrics != nil {
		rt.metrics.RecordArtifactServe(rt.service, outcome)
	}
}

func redemptionOutcome(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidCode):
		return "invalid_code"
	case domain.IsKind(err, domain.ErrExpired):
		return "expired"
	case domain.IsKind(err, domain.ErrNotFound):
		return "not_found"
	case domain.IsKind(err, domain.ErrAlreadyConsumed):
		return "already_printed"
	default:
		return "error"
	}
}

// publicErrorMessage keeps wrapped internals out of responses.
func publicErrorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return "invalid request"
	case domain.IsKind(err, domain.ErrNotFound):
		return "document not found"
	case domain.IsKind(err, domain.ErrAlreadyConsumed):
		return "document already printed"
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrDelivery):
		return "temporarily unavailable"
	default:
		return "internal error"
	}
}

func parseStatus(raw string) (domain.Status, bool) {
	switch strings.TrimSpace(raw) {
	case "", string(domain.StatusPending):
		return domain.StatusPending, true
	case string(domain.StatusPrinted):
		return domain.StatusPrinted, true
	case string(domain.StatusExpired):
		return domain.StatusExpired, true
	case string(domain.StatusDeleted):
		return domain.StatusDeleted, true
	default:
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
