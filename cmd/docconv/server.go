package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	docconv "github.com/alnah/go-docconv"
)

// HTTP limits.
const (
	// formOverhead is added to the job size limit for multipart framing.
	formOverhead = 1 << 20

	// formMemory is how much of a multipart body is kept in memory before
	// spilling to temporary files.
	formMemory = 32 << 20

	formFileField = "file"
)

// Response headers describing the artifact.
const (
	headerStrategy = "X-Docconv-Strategy"
	headerEntries  = "X-Docconv-Entries"
	headerElapsed  = "X-Docconv-Elapsed-Ms"
)

// server holds the HTTP handlers of the conversion API.
type server struct {
	engine  *docconv.Engine
	metrics http.Handler
	logger  zerolog.Logger
	maxBody int64
}

func newServer(eng *docconv.Engine, metrics http.Handler, logger zerolog.Logger, maxFileSize int64) *server {
	return &server{
		engine:  eng,
		metrics: metrics,
		logger:  logger,
		maxBody: maxFileSize + formOverhead,
	}
}

// newRouter creates the chi router with middleware and routes.
func newRouter(s *server) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.accessLog)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/convert", s.handleConvert)
		r.Get("/strategies", s.handleStrategies)
	})

	return r
}

// accessLog writes one structured line per request.
func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info().
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// handleConvert runs one conversion from a multipart form.
//
// Fields: class, quality, format, enhancement, output_name, requester_id and
// one or more "file" parts in page order. The response body is the artifact.
func (s *server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, docconv.KindInvalidJob,
				docconv.UserMessage(fmt.Errorf("%w: %w", docconv.ErrInvalidJob, docconv.ErrFileTooLarge)))
			return
		}
		s.writeError(w, r, http.StatusBadRequest, docconv.KindInvalidJob, "The request must be a multipart form.")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	job, err := jobFromForm(r.MultipartForm)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, docconv.KindInvalidJob, err.Error())
		return
	}

	art, err := s.engine.Submit(r.Context(), job)
	if err != nil {
		s.logger.Debug().Err(err).Str("request_id", chimiddleware.GetReqID(r.Context())).Msg("conversion failed")
		s.writeError(w, r, statusFor(err), docconv.Kind(err), docconv.UserMessage(err))
		return
	}

	h := w.Header()
	h.Set("Content-Type", art.MediaType)
	h.Set("Content-Length", strconv.Itoa(len(art.Data)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Name}))
	h.Set(headerStrategy, art.Strategy)
	h.Set(headerEntries, strconv.Itoa(art.Entries))
	h.Set(headerElapsed, strconv.FormatInt(art.Elapsed.Milliseconds(), 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}

// jobFromForm maps a parsed multipart form onto a job. Class may be left
// out; it is then inferred from the first file.
func jobFromForm(form *multipart.Form) (docconv.Job, error) {
	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	headers := form.File[formFileField]
	files := make([]docconv.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return docconv.Job{}, err
		}
		files = append(files, docconv.File{
			Name:      fh.Filename,
			MediaType: fh.Header.Get("Content-Type"),
			Data:      data,
		})
	}

	job := docconv.Job{
		Files:       files,
		OutputName:  value("output_name"),
		RequesterID: value("requester_id"),
	}

	var err error
	switch class := value("class"); {
	case class != "":
		job.Class, err = docconv.ParseClass(class)
	case len(files) > 0:
		job.Class, err = inferClass(files[0])
	default:
		// Let the engine report the missing files.
		job.Class = docconv.ClassImagesToPDF
	}
	if err != nil {
		return docconv.Job{}, err
	}
	if v := value("quality"); v != "" {
		if job.Quality, err = docconv.ParseQuality(v); err != nil {
			return docconv.Job{}, err
		}
	}
	if v := value("format"); v != "" {
		if job.Format, err = docconv.ParseFormat(v); err != nil {
			return docconv.Job{}, err
		}
	}
	if v := value("enhancement"); v != "" {
		if job.Enhancement, err = docconv.ParseEnhancement(v); err != nil {
			return docconv.Job{}, err
		}
	}
	return job, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	switch docconv.Kind(err) {
	case docconv.KindInvalidJob:
		switch {
		case errors.Is(err, docconv.ErrFileTooLarge):
			return http.StatusRequestEntityTooLarge
		case errors.Is(err, docconv.ErrFeatureDisabled):
			return http.StatusForbidden
		case errors.Is(err, docconv.ErrUnsupportedFormat):
			return http.StatusUnsupportedMediaType
		}
		return http.StatusBadRequest
	case docconv.KindResourceExhausted, docconv.KindNoEligible, docconv.KindClosed:
		return http.StatusServiceUnavailable
	case docconv.KindExhausted:
		return http.StatusUnprocessableEntity
	case docconv.KindCanceled:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

// strategiesResponse lists strategy descriptors.
type strategiesResponse struct {
	Strategies []docconv.StrategyDescriptor `json:"strategies"`
}

// handleStrategies lists the strategies of ?class=, or of every class.
func (s *server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	var class docconv.Class
	if v := r.URL.Query().Get("class"); v != "" {
		c, err := docconv.ParseClass(v)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, docconv.KindInvalidJob, err.Error())
			return
		}
		class = c
	}
	s.writeJSON(w, http.StatusOK, strategiesResponse{Strategies: s.engine.Strategies(class)})
}

// healthResponse reports tool availability and engine counters.
type healthResponse struct {
	Status  string               `json:"status"`
	Version string               `json:"version"`
	Tools   []docconv.ToolStatus `json:"tools"`
	Stats   docconv.Stats        `json:"stats"`
}

// handleHealth always answers 200 while the process serves requests;
// missing tools only narrow the fallback chains.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: Version,
		Tools:   s.engine.Probe().Tools(),
		Stats:   s.engine.Stats(),
	})
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error     docconv.ErrorKind `json:"error"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, kind docconv.ErrorKind, message string) {
	s.writeJSON(w, status, errorResponse{
		Error:     kind,
		Message:   message,
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("writing response")
	}
}
