package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/zipsite/internal/archive"
	"github.com/ziadkadry99/zipsite/internal/blob"
	"github.com/ziadkadry99/zipsite/internal/intercept"
	"github.com/ziadkadry99/zipsite/internal/session"
	"github.com/ziadkadry99/zipsite/internal/vfs"
	"github.com/ziadkadry99/zipsite/internal/vpath"
)

// multipartMemory is how much of an upload is buffered before spilling to disk.
const multipartMemory = 32 << 20

type resourceView struct {
	Path     string  `json:"path"`
	ID       blob.ID `json:"id"`
	MIMEType string  `json:"mime_type"`
	Size     int     `json:"size"`
	Markup   bool    `json:"markup"`
}

type sessionView struct {
	ID        string         `json:"id,omitempty"`
	Source    string         `json:"source,omitempty"`
	State     string         `json:"state"`
	Progress  float64        `json:"progress"`
	Path      string         `json:"path,omitempty"`
	EntryPath string         `json:"entry_path,omitempty"`
	EntryID   blob.ID        `json:"entry_id,omitempty"`
	Prefix    string         `json:"prefix,omitempty"`
	Resources []resourceView `json:"resources,omitempty"`
}

func viewSession(s *session.Session) sessionView {
	if s == nil {
		return sessionView{State: session.Empty.String()}
	}
	v := sessionView{
		ID:       s.ID,
		Source:   s.Source,
		State:    s.State().String(),
		Progress: s.Handle().Value(),
		Path:     s.Paths().Path(),
	}
	t := s.Table()
	if t == nil {
		return v
	}
	v.EntryPath = t.EntryPath
	v.Prefix = t.Prefix
	if rec, ok := t.Entry(); ok {
		v.EntryID = rec.ID
	}
	for _, rec := range t.Records() {
		v.Resources = append(v.Resources, resourceView{
			Path:     rec.Path,
			ID:       rec.ID,
			MIMEType: rec.MIMEType,
			Size:     rec.Size,
			Markup:   rec.IsMarkup(),
		})
	}
	return v
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewSession(s.manager.Current()))
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	id := blob.FromToken(chi.URLParam(r, "token"))
	data, mimeType, err := s.manager.Store().Get(id)
	switch {
	case errors.Is(err, blob.ErrReleased):
		http.Error(w, "content identifier released", http.StatusGone)
		return
	case errors.Is(err, blob.ErrPending):
		w.Header().Set("Retry-After", "1")
		http.Error(w, "content not ready", http.StatusServiceUnavailable)
		return
	case err != nil:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type contextBody struct {
	Path string `json:"path"`
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	sess := s.manager.Current()
	if sess == nil {
		writeJSON(w, http.StatusOK, contextBody{})
		return
	}
	writeJSON(w, http.StatusOK, contextBody{Path: sess.Paths().Path()})
}

// handlePutContext moves the path context to a document of the live table.
func (s *Server) handlePutContext(w http.ResponseWriter, r *http.Request) {
	var body contextBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sess := s.manager.Current()
	if sess == nil || sess.State() != session.Ready {
		writeError(w, http.StatusConflict, "no session is ready")
		return
	}
	key, ok := vpath.Normalize("", body.Path)
	if !ok || key == "" {
		writeError(w, http.StatusBadRequest, "path must be an archive path")
		return
	}
	rec, ok := sess.Lookup(key)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s is not in the archive", key))
		return
	}
	if !rec.IsMarkup() {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%s is not a document", key))
		return
	}
	sess.Paths().Set(key)
	writeJSON(w, http.StatusOK, contextBody{Path: key})
}

// handleFetch serves ref as a fetch from the current document would see it.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	sess := s.manager.Current()
	if sess == nil || sess.State() != session.Ready {
		writeError(w, http.StatusConflict, "no session is ready")
		return
	}
	ref := r.URL.Query().Get("ref")
	data, mimeType, err := sess.Fetch(r.Context(), ref)
	switch {
	case errors.Is(err, session.ErrUnresolved):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusGone, err.Error())
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type navigateBody struct {
	Href string `json:"href"`
}

type navigateResponse struct {
	Href   string `json:"href"`
	Path   string `json:"path"`
	Target string `json:"target,omitempty"`
	OK     bool   `json:"ok"`
}

// handleNavigate follows an anchor href from the current document. Links the
// coordinator does not claim come back with ok false and the path unchanged.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var body navigateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sess := s.manager.Current()
	if sess == nil || sess.State() != session.Ready {
		writeError(w, http.StatusConflict, "no session is ready")
		return
	}
	target, ok := sess.Follow(body.Href)
	writeJSON(w, http.StatusOK, navigateResponse{
		Href:   body.Href,
		Path:   sess.Paths().Path(),
		Target: target,
		OK:     ok,
	})
}

type resolveResponse struct {
	Ref      string `json:"ref"`
	Base     string `json:"base"`
	Resolved string `json:"resolved"`
	OK       bool   `json:"ok"`
}

// handleResolve resolves ref against base, or against the current path
// context when base is empty. Misses return the reference unchanged.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	base := r.URL.Query().Get("base")

	resp := resolveResponse{Ref: ref, Base: base, Resolved: ref}
	sess := s.manager.Current()
	if sess == nil || sess.State() != session.Ready {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	paths := sess.Paths()
	if base != "" {
		key, _ := vpath.Normalize("", base)
		paths = vfs.NewPathContext(key)
	}
	resp.Base = paths.Path()
	resp.Resolved, resp.OK = intercept.NewResolver(paths, nil, sess).Resolve(ref)
	writeJSON(w, http.StatusOK, resp)
}

// handleLoad starts loading an uploaded archive or a remote URL. With
// wait=true it answers once the session is ready or failed; otherwise it
// answers 202 and progress is reported on the event stream.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	src, err := s.sourceFromRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.FormValue("wait") == "true" {
		sess, err := s.manager.Load(r.Context(), src)
		if err != nil {
			writeLoadError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewSession(sess))
		return
	}

	go func() {
		if _, err := s.manager.Load(s.ctx, src); err != nil {
			log.Printf("server: loading %s: %v", src.Name(), err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "loading", "source": src.Name()})
}

func (s *Server) sourceFromRequest(w http.ResponseWriter, r *http.Request) (archive.Source, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if s.cfg.MaxArchiveBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxArchiveBytes+multipartMemory)
		}
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, fmt.Errorf("parsing upload: %w", err)
		}
		if file, hdr, err := r.FormFile("archive"); err == nil {
			defer file.Close()
			return s.readUpload(hdr.Filename, file)
		}
	}

	raw := strings.TrimSpace(r.FormValue("url"))
	if raw == "" {
		return nil, errors.New("an archive file or url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid archive url %q", raw)
	}
	return archive.Remote(s.client, u.String(), s.cfg.MaxArchiveBytes), nil
}

func (s *Server) readUpload(name string, body io.Reader) (archive.Source, error) {
	if s.cfg.MaxArchiveBytes > 0 {
		body = io.LimitReader(body, s.cfg.MaxArchiveBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if s.cfg.MaxArchiveBytes > 0 && int64(len(data)) > s.cfg.MaxArchiveBytes {
		return nil, fmt.Errorf("archive exceeds %d bytes", s.cfg.MaxArchiveBytes)
	}
	return archive.FromBytes(name, data)
}

type loadError struct {
	Error        string `json:"error"`
	Guidance     string `json:"guidance,omitempty"`
	GuidanceHTML string `json:"guidance_html,omitempty"`
}

func writeLoadError(w http.ResponseWriter, err error) {
	body := loadError{Error: err.Error()}
	status := http.StatusUnprocessableEntity

	var coe *archive.CrossOriginError
	var rfe *archive.RemoteFetchError
	switch {
	case errors.Is(err, context.Canceled):
		status = http.StatusConflict
	case errors.As(err, &coe):
		status = http.StatusBadGateway
		body.Guidance = coe.Guidance
		body.GuidanceHTML = renderGuidance(coe.Guidance)
	case errors.As(err, &rfe):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, body)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	n := s.manager.Reset()
	writeJSON(w, http.StatusOK, map[string]int{"released": n})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"aborted": s.manager.Abort()})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
