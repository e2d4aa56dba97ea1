// Package httpapi exposes the HTTP surface of the streaming gateway:
// a status snapshot route and the ranged file-download route,
// generalizing original_source/tgfs/routes.py onto gin, the HTTP
// framework the teacher uses for its own JSON API surface.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"tgfs/internal/tgstream/dispatcher"
	"tgfs/internal/tgstream/fileinfo"
	"tgfs/internal/tgstream/tgerrors"
	"tgfs/internal/tgstream/transfer"
)

// Resolver looks up file metadata for a (msgID, fileName) pair,
// implemented by a fileinfo.Cache in production.
type Resolver interface {
	Get(ctx context.Context, msgID int, fileName string) (*fileinfo.Info, error)
}

// Streamer writes the requested byte range of a file living on a
// given data center to w, implemented by a per-DC *transfer.Downloader
// in production (selected by RoutingStreamer) and faked in tests.
type Streamer interface {
	Stream(ctx context.Context, dcID int, location tg.InputFileLocationClass, plan transfer.Plan, w io.Writer) error
}

// RoutingStreamer dispatches each Stream call to the per-DC
// *transfer.Downloader matching dcID, since one bot client holds a
// connection pool per data center but the HTTP layer only learns
// which DC a file lives on at resolve time.
type RoutingStreamer struct {
	ByDC map[int]*transfer.Downloader
}

func (r RoutingStreamer) Stream(ctx context.Context, dcID int, location tg.InputFileLocationClass, plan transfer.Plan, w io.Writer) error {
	d, ok := r.ByDC[dcID]
	if !ok {
		return fmt.Errorf("httpapi: no downloader configured for dc%d", dcID)
	}
	return d.Stream(ctx, location, plan, w)
}

// Server wires the dispatcher, per-worker resolvers, and per-worker
// downloaders into gin routes.
type Server struct {
	log         *zap.Logger
	dispatcher  *dispatcher.Dispatcher
	resolvers   map[int]Resolver
	downloaders map[int]Streamer
	partSize    int64

	engine *gin.Engine
	http   *http.Server
}

// Config is the subset of tgstreamconfig.Config the HTTP layer needs.
type Config struct {
	Host             string
	Port             int
	DownloadPartSize int64
	Debug            bool
}

// New builds a Server. resolvers and downloaders are keyed by
// dispatcher.Worker.ID, mirroring ParallelTransferrer instances kept
// one per bot client in original_source/tgfs/telegram.py.
func New(log *zap.Logger, d *dispatcher.Dispatcher, resolvers map[int]Resolver, downloaders map[int]Streamer, cfg Config) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestID())

	s := &Server{
		log:         log.Named("httpapi"),
		dispatcher:  d,
		resolvers:   resolvers,
		downloaders: downloaders,
		partSize:    cfg.DownloadPartSize,
		engine:      engine,
	}
	s.registerRoutes()

	s.http = &http.Server{
		Addr:    cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Handler: engine,
	}
	return s
}

// requestID stamps every response with a fresh correlation id, so log
// lines for one download can be grepped out of a busy gateway.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.handleStatus)
	s.engine.GET("/:msgID/:name", s.handleFile)
	s.engine.HEAD("/:msgID/:name", s.handleFile)
}

// ListenAndServe blocks serving HTTP until the server is shut down.
func (s *Server) ListenAndServe() error {
	s.log.Info("listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStatus(c *gin.Context) {
	snap := s.dispatcher.Snapshot()
	out := make(gin.H, len(snap))
	for id, counts := range snap {
		out[strconv.Itoa(id)] = []int32{counts[0], counts[1]}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleFile(c *gin.Context) {
	msgID, err := strconv.Atoi(c.Param("msgID"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid message id")
		return
	}
	fileName := c.Param("name")

	worker, release := s.dispatcher.Lease()
	defer release()

	resolver := s.resolvers[worker.ID]
	info, err := resolver.Get(c.Request.Context(), msgID, fileName)
	if err != nil {
		s.log.Warn("file not found", zap.Int("msg_id", msgID), zap.String("name", fileName), zap.Int("worker", worker.ID))
		c.String(http.StatusNotFound, "404: Not Found")
		return
	}

	fromBytes, untilBytes, satisfiable := parseRange(c.GetHeader("Range"), info.FileSize)
	if !satisfiable {
		s.log.Debug("range not satisfiable", zap.Error(tgerrors.ErrRangeNotSatisfiable), zap.Int64("size", info.FileSize), zap.String("range", c.GetHeader("Range")))
		c.Header("Content-Range", "bytes */"+strconv.FormatInt(info.FileSize, 10))
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	status := http.StatusPartialContent
	if fromBytes == 0 && untilBytes == info.FileSize-1 {
		status = http.StatusOK
	}

	c.Header("Content-Type", info.MimeType)
	c.Header("Content-Range", "bytes "+strconv.FormatInt(fromBytes, 10)+"-"+strconv.FormatInt(untilBytes, 10)+"/"+strconv.FormatInt(info.FileSize, 10))
	c.Header("Content-Length", strconv.FormatInt(untilBytes-fromBytes+1, 10))
	c.Header("Content-Disposition", `attachment; filename="`+sanitizeHeaderValue(fileName)+`"`)
	c.Header("Accept-Ranges", "bytes")
	c.Status(status)

	if c.Request.Method == http.MethodHead {
		return
	}

	downloader := s.downloaders[worker.ID]
	plan := transfer.PlanRange(info.FileSize, fromBytes, untilBytes, s.partSize)

	endTransfer := worker.BeginTransfer()
	defer endTransfer()

	if err := downloader.Stream(c.Request.Context(), info.DCID, info.Location, plan, c.Writer); err != nil {
		if err == tgerrors.ErrCallerCancellation {
			s.log.Debug("download canceled by caller", zap.Int("msg_id", msgID), zap.String("request_id", c.GetString("request_id")))
			return
		}
		if err == tgerrors.ErrUpstreamTransient {
			s.log.Debug("download interrupted by upstream failure", zap.Int("msg_id", msgID), zap.String("request_id", c.GetString("request_id")))
			return
		}
		s.log.Error("download failed", zap.Error(err), zap.Int("msg_id", msgID), zap.String("request_id", c.GetString("request_id")))
	}
}

// parseRange parses an HTTP Range header of the form "bytes=start-end"
// against a resource of the given size, returning the inclusive byte
// bounds and whether the range is satisfiable. An absent header
// requests the whole resource, matching req.http_range's defaults.
func parseRange(header string, size int64) (from, until int64, satisfiable bool) {
	from, until = 0, size-1

	if header != "" {
		spec := strings.TrimPrefix(header, "bytes=")
		parts := strings.SplitN(spec, "-", 2)
		if len(parts) == 2 {
			if parts[0] != "" {
				if v, err := strconv.ParseInt(parts[0], 10, 64); err == nil {
					from = v
				}
			}
			if parts[1] != "" {
				if v, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
					until = v
				}
			}
		}
	}

	if until >= size || from < 0 || until < from {
		return 0, 0, false
	}
	return from, until, true
}

func sanitizeHeaderValue(name string) string {
	return strings.ReplaceAll(name, `"`, `\"`)
}
