package testsupport

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"herdscreen/internal/api"
)

// Route keys used by Backend.Handle and Backend.Requests.
const (
	RouteHealth         = "GET /health"
	RouteCloseSignal    = "POST /api/close-signal"
	RouteUpload         = "POST /api/upload"
	RouteUploadBatch    = "POST /api/upload/batch"
	RouteFiles          = "GET /api/files"
	RouteDeleteFile     = "DELETE /api/files/{id}"
	RouteFarmIDs        = "GET /api/farm-ids"
	RouteStatistics     = "GET /api/data-statistics"
	RouteFilters        = "GET /api/filters"
	RouteFilter         = "POST /api/filter"
	RouteFilterBatch    = "POST /api/filter/batch"
	RouteProgress       = "GET /api/processing-progress"
	RouteDownloadPrefix = "GET /api/download/"
)

// RecordedRequest is what the fake backend saw for one call.
type RecordedRequest struct {
	Header http.Header
	Path   string
	Form   map[string][]string
	Files  map[string][]string
	Body   []byte
}

// ProgressReply is one scripted answer of the progress endpoint. A zero
// Status means 200 with Snapshot as the body.
type ProgressReply struct {
	Status   int
	Snapshot api.ProgressSnapshot
}

// Backend is an in-process stand-in for the screening backend. Every route
// has a canned default answer; tests override routes with Handle and script
// the progress endpoint with SetProgress.
type Backend struct {
	Server *httptest.Server

	mu        sync.Mutex
	handlers  map[string]http.HandlerFunc
	requests  map[string][]RecordedRequest
	progress  []ProgressReply
	downloads map[string][]byte
}

// NewBackend starts a fake backend that is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		handlers:  map[string]http.HandlerFunc{},
		requests:  map[string][]RecordedRequest{},
		downloads: map[string][]byte{},
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the backend root URL.
func (b *Backend) URL() string {
	return b.Server.URL
}

// Handle overrides the handler for a route key.
func (b *Backend) Handle(route string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[route] = h
}

// SetProgress scripts the progress endpoint. Replies are consumed in order;
// the last one repeats.
func (b *Backend) SetProgress(replies ...ProgressReply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress = append([]ProgressReply(nil), replies...)
}

// ServeDownload makes GET /api/download/<name> return content.
func (b *Backend) ServeDownload(name string, content []byte) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.downloads[name] = content
	return "/api/download/" + name
}

// Requests returns the requests recorded for a route key.
func (b *Backend) Requests(route string) []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest(nil), b.requests[route]...)
}

func routeKey(r *http.Request) string {
	switch {
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/files/"):
		return RouteDeleteFile
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/download/"):
		return RouteDownloadPrefix
	default:
		return r.Method + " " + r.URL.Path
	}
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	key := routeKey(r)
	b.record(key, r)

	b.mu.Lock()
	handler := b.handlers[key]
	b.mu.Unlock()
	if handler != nil {
		handler(w, r)
		return
	}
	b.defaultHandler(key, w, r)
}

func (b *Backend) record(key string, r *http.Request) {
	rec := RecordedRequest{Header: r.Header.Clone(), Path: r.URL.Path}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			rec.Form = map[string][]string(r.MultipartForm.Value)
			rec.Files = map[string][]string{}
			for field, headers := range r.MultipartForm.File {
				for _, fh := range headers {
					rec.Files[field] = append(rec.Files[field], fh.Filename)
				}
			}
		}
	} else if r.Body != nil {
		rec.Body, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(rec.Body))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests[key] = append(b.requests[key], rec)
}

func (b *Backend) nextProgress() ProgressReply {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.progress) == 0 {
		return ProgressReply{}
	}
	reply := b.progress[0]
	if len(b.progress) > 1 {
		b.progress = b.progress[1:]
	}
	return reply
}

func (b *Backend) defaultHandler(key string, w http.ResponseWriter, r *http.Request) {
	switch key {
	case RouteHealth:
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case RouteCloseSignal:
		WriteJSON(w, http.StatusOK, api.StatusResponse{Success: true})
	case RouteUpload:
		WriteJSON(w, http.StatusOK, api.UploadResponse{Success: true, Message: "uploaded", FileID: "file-1"})
	case RouteUploadBatch:
		resp := api.BatchUploadResponse{Success: true, Message: "uploaded", FailedFiles: []api.FailedFile{}}
		if r.MultipartForm != nil {
			for _, fh := range r.MultipartForm.File["files"] {
				resp.SuccessFiles = append(resp.SuccessFiles, api.UploadedFile{Filename: fh.Filename, RowCount: 10})
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	case RouteFiles:
		WriteJSON(w, http.StatusOK, api.FilesResponse{Success: true, Files: []api.FileInfo{}})
	case RouteDeleteFile:
		WriteJSON(w, http.StatusOK, api.StatusResponse{Success: true, Message: "deleted"})
	case RouteFarmIDs:
		WriteJSON(w, http.StatusOK, api.FarmIDsResponse{Success: true, FarmIDs: []string{}})
	case RouteStatistics:
		WriteJSON(w, http.StatusOK, api.DataStatistics{Success: true})
	case RouteFilters:
		WriteJSON(w, http.StatusOK, api.FiltersResponse{Success: true, Filters: map[string]api.FilterDefinition{}})
	case RouteFilter:
		WriteJSON(w, http.StatusOK, api.NewLegacyResult(0, 0, ""))
	case RouteFilterBatch:
		WriteJSON(w, http.StatusOK, api.NewCurrentResult(0, 0, 0, "0", ""))
	case RouteProgress:
		reply := b.nextProgress()
		if reply.Status != 0 && reply.Status != http.StatusOK {
			WriteError(w, reply.Status, "progress unavailable")
			return
		}
		WriteJSON(w, http.StatusOK, reply.Snapshot)
	case RouteDownloadPrefix:
		b.mu.Lock()
		content, ok := b.downloads[strings.TrimPrefix(r.URL.Path, "/api/download/")]
		b.mu.Unlock()
		if !ok {
			WriteError(w, http.StatusNotFound, "file not found")
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, _ = w.Write(content)
	default:
		WriteError(w, http.StatusNotFound, "not found")
	}
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError writes the backend's {detail} error body.
func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, api.ErrorBody{Detail: detail})
}
