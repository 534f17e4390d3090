// Package server exposes the compositor over HTTP: upload a PDF, compose
// overlays onto it, and follow progress over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"

	"github.com/wudi/pdfoverlay/compose"
	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/engine"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/overlay"
	"github.com/wudi/pdfoverlay/pagemap"
	"github.com/wudi/pdfoverlay/raster"
	"github.com/wudi/pdfoverlay/security"
)

var (
	errMissingJob  = errors.New("missing job parameter")
	errEmptyUpload = errors.New("empty upload")
)

// Backend is what the server needs from a PDF engine.
type Backend interface {
	engine.Engine
	engine.Assembler
}

type Option func(*Server)

func WithLogger(l observability.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func WithLimits(l security.Limits) Option {
	return func(s *Server) { s.limits = l }
}

// WithComposeOptions configures every per-request compositor.
func WithComposeOptions(opts ...compose.Option) Option {
	return func(s *Server) { s.composeOpts = append(s.composeOpts, opts...) }
}

// WithTempDir sets where per-request working directories are created.
func WithTempDir(dir string) Option {
	return func(s *Server) { s.tempDir = dir }
}

type Server struct {
	backend     Backend
	dataDir     string
	tempDir     string
	limits      security.Limits
	log         observability.Logger
	composeOpts []compose.Option

	docs     *documents
	hub      *hub
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New returns a server storing uploads in dataDir.
func New(backend Backend, dataDir string, opts ...Option) (*Server, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("server: data dir: %w", err)
	}
	s := &Server{
		backend: backend,
		dataDir: dataDir,
		limits:  security.DefaultLimits(),
		log:     observability.NopLogger{},
		hub:     newHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.docs = newDocuments(s.limits.MaxDocuments)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST /documents", s.handleUpload)
	s.mux.HandleFunc("GET /documents/{id}", s.handleDocument)
	s.mux.HandleFunc("POST /compose", s.handleCompose)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.mux }

// Serve accepts connections on ln, at most MaxConnections at a time, until
// ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.limits.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.limits.MaxConnections)
	}
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("listening", observability.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close removes stored documents.
func (s *Server) Close() error { return s.docs.removeAll() }

type pageInfo struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type documentInfo struct {
	ID        string     `json:"id"`
	PageCount int        `json:"pageCount"`
	Pages     []pageInfo `json:"pages"`
}

func infoOf(doc document) documentInfo {
	info := documentInfo{ID: doc.ID, PageCount: len(doc.Sizes), Pages: make([]pageInfo, len(doc.Sizes))}
	for i, sz := range doc.Sizes {
		info.Pages[i] = pageInfo{W: sz.W, H: sz.H}
	}
	return info
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.limits.MaxDocumentSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxDocumentSize)
	}
	id := uuid.NewString()
	path := filepath.Join(s.dataDir, id+".pdf")

	n, err := saveBody(path, r.Body)
	if err != nil {
		os.Remove(path)
		s.writeError(w, statusOf(err), err)
		return
	}
	if n == 0 {
		os.Remove(path)
		s.writeError(w, http.StatusBadRequest, errEmptyUpload)
		return
	}
	sizes, err := s.backend.PageSizes(r.Context(), path)
	if err != nil {
		os.Remove(path)
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read pdf: %w", err))
		return
	}
	doc := document{ID: id, Path: path, Sizes: sizes}
	if err := s.docs.put(doc); err != nil {
		os.Remove(path)
		s.writeError(w, statusOf(err), err)
		return
	}
	s.log.Info("document stored", observability.String("id", id), observability.Int("pages", len(sizes)), observability.Int64("bytes", n))
	s.writeJSON(w, http.StatusCreated, infoOf(doc))
}

func saveBody(path string, body io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, infoOf(doc))
}

// ComposeRequest is the body of POST /compose. With HasReordering set the
// document is first rebuilt in PageOrder and overlay page indexes refer to
// the rebuilt document.
type ComposeRequest struct {
	DocumentID    string            `json:"documentId"`
	Overlays      []overlay.Overlay `json:"overlays"`
	PageOrder     []pagemap.Entry   `json:"pageOrder,omitempty"`
	HasReordering bool              `json:"hasReordering,omitempty"`
	// JobID names the /events stream for this run. One is generated when
	// empty and returned in the X-Compose-Job header.
	JobID string `json:"jobId,omitempty"`
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	if s.limits.MaxRequestSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxRequestSize)
	}
	var req ComposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, statusOf(err), fmt.Errorf("decode request: %w", err))
		return
	}
	if err := s.checkRequest(req); err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	doc, err := s.docs.get(req.DocumentID)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	job := req.JobID
	if job == "" {
		job = uuid.NewString()
	}
	log := s.log.With(observability.String("job", job), observability.String("document", doc.ID))

	ctx := r.Context()
	if s.limits.ComposeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.limits.ComposeTimeout)
		defer cancel()
	}

	work, err := os.MkdirTemp(s.tempDir, "request-")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("%w: %v", compose.ErrTempFile, err))
		return
	}
	defer func() {
		if err := os.RemoveAll(work); err != nil {
			log.Warn("remove request dir", observability.Error("error", err))
		}
	}()

	source := doc.Path
	if req.HasReordering {
		source, err = s.assemble(ctx, doc, req.PageOrder, work)
		if err != nil {
			s.fail(w, log, job, err)
			return
		}
	}

	opts := append(append([]compose.Option(nil), s.composeOpts...),
		compose.WithLogger(log),
		compose.WithTempDir(work),
		compose.WithLimits(s.limits),
		compose.WithProgress(func(p compose.Progress) { s.hub.publish(progressEvent(job, p)) }),
	)
	c := compose.New(s.backend, opts...)

	w.Header().Set("X-Compose-Job", job)
	pw := &pdfWriter{w: w}
	res, err := c.ComposeTo(ctx, source, req.Overlays, pw)
	if err != nil {
		if pw.wrote {
			log.Error("stream composed pdf", observability.Error("error", err))
			return
		}
		s.fail(w, log, job, err)
		return
	}
	log.Info("compose served", observability.Int("applied", res.Applied), observability.Int("dropped", len(res.Dropped)))
}

// pdfWriter sets the response headers on the first write, so a compose
// failure can still be reported with an error status.
type pdfWriter struct {
	w     http.ResponseWriter
	wrote bool
}

func (p *pdfWriter) Write(b []byte) (int, error) {
	if !p.wrote {
		p.w.Header().Set("Content-Type", "application/pdf")
		p.w.WriteHeader(http.StatusOK)
		p.wrote = true
	}
	return p.w.Write(b)
}

func (s *Server) checkRequest(req ComposeRequest) error {
	if err := s.limits.CheckCompose(len(req.Overlays), len(req.PageOrder)); err != nil {
		return err
	}
	if req.HasReordering && len(req.PageOrder) == 0 {
		return fmt.Errorf("reordering without a page order: %w", pagemap.ErrBadOrder)
	}
	for i, o := range req.Overlays {
		if o.Image == nil || o.Image.Src == "" {
			continue
		}
		// Base64 carries three bytes per four characters.
		if err := s.limits.CheckPayload(len(o.Image.Src) / 4 * 3); err != nil {
			return fmt.Errorf("overlay %d: %w", i, err)
		}
	}
	return nil
}

// assemble rebuilds the page list from doc and any other stored documents
// the order refers to.
func (s *Server) assemble(ctx context.Context, doc document, order []pagemap.Entry, dir string) (string, error) {
	groups, err := pagemap.Layout(order, doc.ID)
	if err != nil {
		return "", err
	}
	parts := make([]engine.Part, len(groups))
	for i, g := range groups {
		src, err := s.docs.get(g.Source)
		if err != nil {
			return "", err
		}
		for _, p := range g.Pages {
			if p > len(src.Sizes) {
				return "", fmt.Errorf("%w: page %d of %s (%d pages)", pagemap.ErrBadOrder, p, src.ID, len(src.Sizes))
			}
		}
		parts[i] = engine.Part{Path: src.Path, Pages: g.Pages}
	}
	out := filepath.Join(dir, "assembled.pdf")
	if err := s.backend.Assemble(ctx, parts, out); err != nil {
		return "", fmt.Errorf("assemble pages: %w", err)
	}
	return out, nil
}

func (s *Server) fail(w http.ResponseWriter, log observability.Logger, job string, err error) {
	log.Warn("compose failed", observability.Error("error", err))
	s.hub.publish(Event{Job: job, Error: err.Error()})
	s.writeError(w, statusOf(err), err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "documents": s.docs.len()})
}

func statusOf(err error) int {
	var maxBytes *http.MaxBytesError
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, security.ErrLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrNoDocument):
		return http.StatusNotFound
	case errors.Is(err, ErrTooManyFiles):
		return http.StatusInsufficientStorage
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, compose.ErrOverlayApplyFailed),
		errors.Is(err, coords.ErrInvalidGeometry),
		errors.Is(err, raster.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	case errors.As(err, &syntax), errors.As(err, &typeErr),
		errors.Is(err, pagemap.ErrBadOrder), errors.Is(err, overlay.ErrUnknownKind),
		errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", observability.Int("status", status), observability.Error("error", err))
	}
	s.writeJSON(w, status, errorBody{Error: err.Error(), Status: status})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", observability.Error("error", err))
	}
}

// Port returns the TCP port of addr, or 0.
func Port(addr net.Addr) int {
	_, p, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(p)
	return n
}
