package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lanewise/kbengine/internal/config"
	"github.com/lanewise/kbengine/internal/core/ports"
)

type Router struct {
	cfg       config.Config
	kbManager ports.KnowledgeBaseManager
	ingestor  ports.DocumentIngestor
	querySvc  ports.KnowledgeQueryService
	docs      ports.DocumentRepository
}

func NewRouter(
	cfg config.Config,
	kbManager ports.KnowledgeBaseManager,
	ingestor ports.DocumentIngestor,
	querySvc ports.KnowledgeQueryService,
	docs ports.DocumentRepository,
) *Router {
	return &Router{
		cfg:       cfg,
		kbManager: kbManager,
		ingestor:  ingestor,
		querySvc:  querySvc,
		docs:      docs,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/kb", rt.knowledgeBaseCollection)
	mux.HandleFunc("/v1/kb/", rt.knowledgeBaseSubtree)

	var handler http.Handler = mux
	if rt.cfg.APIMaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) knowledgeBaseCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.createKnowledgeBase(w, r)
	case http.MethodGet:
		rt.listKnowledgeBases(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// knowledgeBaseSubtree routes /v1/kb/{id}, /v1/kb/{id}/documents and
// /v1/kb/{id}/query.
func (rt *Router) knowledgeBaseSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/kb/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "knowledge base id is required"})
		return
	}
	kbID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		rt.getKnowledgeBase(w, r, kbID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		rt.deleteKnowledgeBase(w, r, kbID)
	case len(parts) == 2 && parts[1] == "documents" && r.Method == http.MethodPost:
		rt.uploadDocument(w, r, kbID)
	case len(parts) == 2 && parts[1] == "documents" && r.Method == http.MethodGet:
		rt.listDocuments(w, r, kbID)
	case len(parts) == 2 && parts[1] == "query" && r.Method == http.MethodPost:
		rt.answerQuery(w, r, kbID)
	case len(parts) <= 2:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) createKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	kb, err := rt.kbManager.CreateKnowledgeBase(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, kb)
}

func (rt *Router) listKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	kbs, err := rt.kbManager.ListKnowledgeBases(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kbs)
}

func (rt *Router) getKnowledgeBase(w http.ResponseWriter, r *http.Request, kbID string) {
	kb, err := rt.kbManager.GetKnowledgeBase(r.Context(), kbID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kb)
}

func (rt *Router) deleteKnowledgeBase(w http.ResponseWriter, r *http.Request, kbID string) {
	if err := rt.kbManager.DeleteKnowledgeBase(r.Context(), kbID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request, kbID string) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		kbID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request, kbID string) {
	docs, err := rt.docs.ListByKnowledgeBase(r.Context(), kbID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (rt *Router) answerQuery(w http.ResponseWriter, r *http.Request, kbID string) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	answer, err := rt.querySvc.AnswerQuery(r.Context(), kbID, req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
