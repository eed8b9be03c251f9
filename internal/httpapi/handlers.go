package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"memorykeep/pkg/memorykeep"
)

type memoryRequest struct {
	Type  string          `json:"type"`
	Entry json.RawMessage `json:"entry"`
}

// handleLogMemory appends one entry to the tenant's category.
func (s *Server) handleLogMemory(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
		return
	}

	var request memoryRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if entryMissing(request.Entry) {
		s.respondError(w, http.StatusBadRequest, "Missing 'entry'")
		return
	}

	category := request.Type
	if category == "" {
		category = memorykeep.DefaultCategory
	}

	if err := s.store.Append(tenant.Credential, category, request.Entry); err != nil {
		s.respondStoreError(w, r, tenant.Name, category, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "logged"})
}

// handleGetMemory returns the tenant's memory for one category.
func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
		return
	}

	category := r.URL.Query().Get("type")
	if category == "" {
		category = memorykeep.DefaultCategory
	}

	payload, err := s.store.Read(tenant.Credential, category)
	if err != nil {
		s.respondStoreError(w, r, tenant.Name, category, err)
		return
	}

	response := map[string]any{"format": payload.Format}
	if payload.Format == memorykeep.FormatStructured {
		response["memory"] = payload.JSON
	} else {
		response["memory"] = payload.Text
	}

	s.respondJSON(w, http.StatusOK, response)
}

// handleOverwriteMemory replaces the tenant's category memory.
func (s *Server) handleOverwriteMemory(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
		return
	}

	var request memoryRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if request.Type == "" || entryMissing(request.Entry) {
		s.respondError(w, http.StatusBadRequest, "Missing 'type' or 'entry'")
		return
	}

	if err := s.store.Overwrite(tenant.Credential, request.Type, request.Entry); err != nil {
		s.respondStoreError(w, r, tenant.Name, request.Type, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "overwritten"})
}

// respondStoreError maps store failures onto the wire error taxonomy.
func (s *Server) respondStoreError(
	w http.ResponseWriter,
	r *http.Request,
	tenantName string,
	category string,
	err error,
) {
	switch {
	case errors.Is(err, memorykeep.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "No memory found")
	case errors.Is(err, memorykeep.ErrBadRequest):
		s.respondError(w, http.StatusBadRequest, "Invalid type or entry")
	case errors.Is(err, memorykeep.ErrStorageCorrupt):
		s.logger.Error("corrupt memory file",
			"tenant", tenantName,
			"category", category,
			"error", err,
		)
		s.respondError(w, http.StatusInternalServerError, "Stored memory is corrupt")
	default:
		s.logger.Error("memory operation failed",
			"tenant", tenantName,
			"category", category,
			"path", r.URL.Path,
			"error", err,
		)
		s.respondError(w, http.StatusInternalServerError, "Internal error")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// entryMissing reports whether an entry field is absent or JSON null.
func entryMissing(entry json.RawMessage) bool {
	trimmed := bytes.TrimSpace(entry)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
