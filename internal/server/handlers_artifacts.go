package server

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonathan/resume-vault/internal/scope"
	"github.com/jonathan/resume-vault/internal/server/middleware"
	"github.com/jonathan/resume-vault/internal/store"
	"github.com/jonathan/resume-vault/internal/types"
	"go.uber.org/zap"
)

// contentTypes maps artifact extensions to response media types.
var contentTypes = map[types.Extension]string{
	types.ExtDocx: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	types.ExtTxt:  "text/plain; charset=utf-8",
}

// subject resolves the collection a request addresses: the bidder's own for
// self routes, the {bidderId} path value for delegated routes after checking
// the assignment.
func (s *Server) subject(r *http.Request) (string, error) {
	p, err := middleware.GetPrincipal(r)
	if err != nil {
		return "", &ErrInvalidCredentials{}
	}
	sc, err := scope.Resolve(p, r.PathValue("bidderId"))
	if err != nil {
		return "", &ErrForbidden{Reason: err.Error()}
	}
	if err := s.userService.CanView(r.Context(), p, sc.SubjectID); err != nil {
		return "", err
	}
	return sc.SubjectID, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ErrValidation{Message: fmt.Sprintf("%s must be a number", name)}
	}
	return n, nil
}

// handleListArtifacts returns one page of the subject's artifacts.
func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	subject, err := s.subject(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page, err := intParam(r, "page", 1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", types.DefaultPageSize)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := types.ListQuery{Page: page, Limit: limit}
	if err := q.Validate(); err != nil {
		s.fail(w, r, &ErrValidation{Message: types.ValidationMessage(err)})
		return
	}

	result, err := s.vault.List(subject, q.Page, q.Limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleDeleteArtifact removes a named artifact from every day it appears on.
func (s *Server) handleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	subject, err := s.subject(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.DeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, &ErrValidation{Message: types.ValidationMessage(err)})
		return
	}

	removed, err := s.vault.Remove(subject, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("artifact deleted",
		zap.String("subject", subject),
		zap.String("name", req.Name),
		zap.Int("removed", removed))
	s.jsonResponse(w, http.StatusOK, map[string]any{"message": "Deleted", "removed": removed})
}

// downloadRequest reads filePath and ext. A filePath that already ends in a
// known extension needs no ext parameter.
func downloadRequest(r *http.Request) (types.DownloadRequest, error) {
	name := r.URL.Query().Get("filePath")
	rawExt := r.URL.Query().Get("ext")
	if rawExt == "" {
		if e := filepath.Ext(name); e == string(types.ExtDocx) || e == string(types.ExtTxt) {
			rawExt = e
			name = strings.TrimSuffix(name, e)
		}
	}
	ext, err := types.ParseExtension(rawExt)
	if err != nil {
		return types.DownloadRequest{}, &ErrValidation{Message: err.Error()}
	}
	req := types.DownloadRequest{Name: name, Ext: ext}
	if err := req.Validate(); err != nil {
		return types.DownloadRequest{}, &ErrValidation{Message: types.ValidationMessage(err)}
	}
	return req, nil
}

func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}

// handleDownloadArtifact streams one file of an artifact.
func (s *Server) handleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	subject, err := s.subject(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := downloadRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	f, err := s.vault.Open(subject, req.Name, req.Ext)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentTypes[req.Ext])
	w.Header().Set("Content-Disposition", attachment(types.Artifact{Name: req.Name}.Filename(req.Ext)))
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn("download interrupted", zap.String("name", req.Name), zap.Error(err))
	}
}

// handleDownloadArchive streams a zip of every artifact of one day.
func (s *Server) handleDownloadArchive(w http.ResponseWriter, r *http.Request) {
	subject, err := s.subject(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req := types.ArchiveRequest{Date: r.URL.Query().Get("date")}
	if err := req.Validate(); err != nil {
		s.fail(w, r, &ErrValidation{Message: types.ValidationMessage(err)})
		return
	}

	ok, err := s.vault.HasDate(subject, req.Date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "No artifacts for "+req.Date)
		return
	}

	w.Header().Set("Content-Type", types.ArchiveMediaType)
	w.Header().Set("Content-Disposition", attachment(store.ArchiveFilename(req.Date)))
	w.WriteHeader(http.StatusOK)
	n, err := s.vault.WriteArchive(w, subject, req.Date)
	if err != nil {
		// Headers are gone; the client sees a truncated zip.
		s.logger.Error("archive interrupted", zap.String("date", req.Date), zap.Error(err))
		return
	}
	s.logger.Debug("archive sent", zap.String("subject", subject), zap.String("date", req.Date), zap.Int("files", n))
}

// handleDraft validates a job description. Generation itself is not offered
// by this store.
func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	var req types.DraftRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, &ErrValidation{Message: "Job description is required"})
		return
	}
	s.errorResponse(w, http.StatusNotImplemented, "Draft generation is not available on this store")
}
