package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"tgfs/internal/tgstream/dispatcher"
	"tgfs/internal/tgstream/fileinfo"
	"tgfs/internal/tgstream/transfer"
)

type fakeResolver struct {
	info *fileinfo.Info
	err  error
}

func (f *fakeResolver) Get(ctx context.Context, msgID int, fileName string) (*fileinfo.Info, error) {
	return f.info, f.err
}

type fakeStreamer struct {
	written []byte
}

func (f *fakeStreamer) Stream(ctx context.Context, dcID int, location tg.InputFileLocationClass, plan transfer.Plan, w io.Writer) error {
	_, err := w.Write(f.written)
	return err
}

func newTestServer(t *testing.T, info *fileinfo.Info, resolveErr error, payload []byte) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	worker := &dispatcher.Worker{ID: 1}
	d := dispatcher.New([]*dispatcher.Worker{worker})

	resolvers := map[int]Resolver{1: &fakeResolver{info: info, err: resolveErr}}
	downloaders := map[int]Streamer{1: &fakeStreamer{written: payload}}

	log := zap.NewNop()
	return New(log, d, resolvers, downloaders, Config{Host: "127.0.0.1", Port: 0, DownloadPartSize: 1024 * 1024})
}

func TestHandleFileNotFound(t *testing.T) {
	s := newTestServer(t, nil, fileinfo.ErrNotFound, nil)

	req := httptest.NewRequest(http.MethodGet, "/999/missing.mp4", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleFileFullRangeReturns200(t *testing.T) {
	payload := []byte("hello world")
	info := &fileinfo.Info{FileSize: int64(len(payload)), MimeType: "text/plain", FileName: "hi.txt"}
	s := newTestServer(t, info, nil, payload)

	req := httptest.NewRequest(http.MethodGet, "/42/hi.txt", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("expected Accept-Ranges: bytes header")
	}
	if rec.Header().Get("Content-Disposition") == "" {
		t.Error("expected a Content-Disposition header")
	}
	if rec.Body.String() != string(payload) {
		t.Errorf("expected body %q, got %q", payload, rec.Body.String())
	}
}

func TestHandleFilePartialRangeReturns206(t *testing.T) {
	payload := []byte("0123456789")
	info := &fileinfo.Info{FileSize: int64(len(payload)), MimeType: "text/plain", FileName: "hi.txt"}
	s := newTestServer(t, info, nil, payload[2:6])

	req := httptest.NewRequest(http.MethodGet, "/42/hi.txt", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 2-5/10" {
		t.Errorf("expected Content-Range bytes 2-5/10, got %q", got)
	}
}

func TestHandleFileUnsatisfiableRangeReturns416(t *testing.T) {
	payload := []byte("0123456789")
	info := &fileinfo.Info{FileSize: int64(len(payload)), MimeType: "text/plain", FileName: "hi.txt"}
	s := newTestServer(t, info, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/42/hi.txt", nil)
	req.Header.Set("Range", "bytes=0-100")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("expected 416, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */10" {
		t.Errorf("expected Content-Range bytes */10, got %q", got)
	}
}

func TestHandleFileHeadRequestHasNoBody(t *testing.T) {
	payload := []byte("0123456789")
	info := &fileinfo.Info{FileSize: int64(len(payload)), MimeType: "text/plain", FileName: "hi.txt"}
	s := newTestServer(t, info, nil, payload)

	req := httptest.NewRequest(http.MethodHead, "/42/hi.txt", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected an empty body for HEAD, got %d bytes", rec.Body.Len())
	}
}

func TestHandleStatusReturnsSnapshot(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
