package web

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cashlens/cashlens/internal/importer"
	"github.com/cashlens/cashlens/internal/ledger"
	mw "github.com/cashlens/cashlens/internal/web/middleware"
)

// uploadResponse is the staging result returned by POST /api/upload.
type uploadResponse struct {
	UploadID  string                   `json:"upload_id"`
	FileName  string                   `json:"file_name"`
	Status    importer.SessionStatus   `json:"status"`
	ExpiresAt string                   `json:"expires_at"`
	Analysis  *importer.AnalysisResult `json:"analysis"`
}

// handleUpload accepts a multipart CSV upload, runs the analysis, and
// stages the batch for review. Nothing touches the ledger here.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	// One extra KiB so an oversize file fails the parser's size check with
	// a clear message instead of a broken multipart read.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1024)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondError(w, r, &importer.ValidationError{Reason: "file too large or invalid form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, &importer.ValidationError{Reason: "no file provided"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, &importer.ValidationError{Reason: "failed to read file"})
		return
	}

	owner := mw.OwnerFromContext(r.Context())
	session, err := s.coord.Upload(r.Context(), owner, header.Filename, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		UploadID:  session.ID,
		FileName:  session.FileName,
		Status:    session.Status,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		Analysis:  session.Analysis,
	})
}

// handleUploadStatus returns the staged session for review polling.
func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	owner := mw.OwnerFromContext(r.Context())
	session, err := s.coord.Session(owner, chi.URLParam(r, "uploadID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// handleConfirm commits the staged batch to the ledger, excluding
// duplicate-flagged rows.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	owner := mw.OwnerFromContext(r.Context())
	result, err := s.coord.Confirm(r.Context(), owner, chi.URLParam(r, "uploadID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCancel discards the staged batch.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	owner := mw.OwnerFromContext(r.Context())
	session, err := s.coord.Cancel(r.Context(), owner, chi.URLParam(r, "uploadID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"upload_id": session.ID,
		"status":    session.Status,
	})
}

// handleActivity returns the owner's recent pipeline actions.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeJSON(w, http.StatusOK, map[string]any{"activity": []ledger.ActivityEntry{}})
		return
	}

	owner := mw.OwnerFromContext(r.Context())
	entries, err := s.activity.Recent(r.Context(), owner, 50)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []ledger.ActivityEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
