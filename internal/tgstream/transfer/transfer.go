// Package transfer computes chunk alignment for a byte range against
// upload.getFile part boundaries and streams the resulting bytes,
// generalizing original_source/tgfs/paralleltransfer.py's download/_int_download
// pair. It follows the corrected last-part slicing found in
// original_source/tgfs/streamer.py rather than the off-by-offset
// variant in paralleltransfer.py.
package transfer

import (
	"context"
	"errors"
	"io"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"

	"tgfs/internal/tgstream/tgerrors"
)

// Plan is the chunk-alignment result of mapping a byte range onto
// upload.getFile part boundaries.
type Plan struct {
	FirstPart    int
	LastPart     int
	PartCount    int
	PartSize     int64
	FirstPartCut int64
	LastPartCut  int64
}

// PlanRange computes a Plan for [offset, limit] inclusive against a
// file of fileSize bytes, partitioned into partSize-byte chunks. The
// arithmetic mirrors ParallelTransferrer.download.
func PlanRange(fileSize, offset, limit, partSize int64) Plan {
	firstPartCut := offset % partSize
	firstPart := int(offset / partSize)
	lastPartCut := (limit % partSize) + 1
	lastPart := int(limit / partSize)
	partCount := int(ceilDiv(fileSize, partSize))

	return Plan{
		FirstPart:    firstPart,
		LastPart:     lastPart,
		PartCount:    partCount,
		PartSize:     partSize,
		FirstPartCut: firstPartCut,
		LastPartCut:  lastPartCut,
	}
}

func ceilDiv(a, b int64) int64 {
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}

// Slice trims the bytes returned for a given part index according to
// its position within the plan. This is the corrected formulation:
// when a single part covers the whole requested range, it is cut on
// both ends using byte offsets within that part, not treated as a
// pair of byte indices into the full file.
func (p Plan) Slice(part int, data []byte) []byte {
	switch {
	case p.FirstPart == p.LastPart:
		return data[p.FirstPartCut:p.LastPartCut]
	case part == p.FirstPart:
		return data[p.FirstPartCut:]
	case part == p.LastPart:
		return data[:p.LastPartCut]
	default:
		return data
	}
}

// API is the subset of *tg.Client a download needs, narrowed so tests
// can substitute a fake upload.getFile backend.
type API interface {
	UploadGetFile(ctx context.Context, req *tg.UploadGetFileRequest) (tg.UploadFileClass, error)
}

// Pool leases an API connection for the duration of fn, mirroring
// dcpool.Manager.Lease but decoupled from its concrete Connection
// type so Downloader stays testable without a live data center.
type Pool interface {
	Lease(ctx context.Context, fn func(API) error) error
}

// Downloader streams file chunks through a Pool, handling FLOOD_WAIT
// with a single retry and propagating caller cancellation, following
// _int_download's exception handling.
type Downloader struct {
	log     *zap.Logger
	pool    Pool
	retryer FloodWaiter
}

// FloodWaiter sleeps for a FLOOD_WAIT delay; production code uses
// RealFloodWaiter (a time.NewTimer wait that ends early if ctx is
// canceled), tests substitute a no-op.
type FloodWaiter interface {
	Wait(ctx context.Context, seconds int) error
}

func NewDownloader(log *zap.Logger, pool Pool, retryer FloodWaiter) *Downloader {
	return &Downloader{log: log, pool: pool, retryer: retryer}
}

// Stream writes every requested chunk of location to w, in order,
// applying plan.Slice to trim the first and last parts. It returns
// once the full range has been written or ctx is canceled.
func (d *Downloader) Stream(ctx context.Context, location tg.InputFileLocationClass, plan Plan, w io.Writer) error {
	return d.pool.Lease(ctx, func(api API) error {
		part := plan.FirstPart
		offset := int64(plan.FirstPart) * plan.PartSize

		for part <= plan.LastPart {
			select {
			case <-ctx.Done():
				return tgerrors.ErrCallerCancellation
			default:
			}

			req := &tg.UploadGetFileRequest{
				Location: location,
				Offset:   offset,
				Limit:    int(plan.PartSize),
			}

			result, err := d.fetchWithRetry(ctx, api, req)
			if err != nil {
				return err
			}

			data := fileBytes(result)
			if len(data) == 0 {
				break
			}

			chunk := plan.Slice(part, data)
			if _, err := w.Write(chunk); err != nil {
				if errors.Is(err, context.Canceled) {
					return tgerrors.ErrCallerCancellation
				}
				return err
			}

			offset += plan.PartSize
			part++
		}
		return nil
	})
}

// fetchWithRetry issues the getFile RPC, retrying exactly once after
// a FLOOD_WAIT delay if the upstream requests one.
func (d *Downloader) fetchWithRetry(ctx context.Context, api API, req *tg.UploadGetFileRequest) (tg.UploadFileClass, error) {
	result, err := api.UploadGetFile(ctx, req)
	if err == nil {
		return result, nil
	}

	if wait, ok := tgerr.AsFloodWait(err); ok {
		d.log.Debug("flood wait, retrying once", zap.Duration("wait", wait))
		if waitErr := d.retryer.Wait(ctx, int(wait.Seconds())); waitErr != nil {
			return nil, waitErr
		}
		result, err = api.UploadGetFile(ctx, req)
		if err == nil {
			return result, nil
		}
		if wait, ok := tgerr.AsFloodWait(err); ok {
			return nil, tgerrors.NewRateLimit(int(wait.Seconds()))
		}
	}

	if tgerr.Is(err, "DC_ID_INVALID") {
		return nil, tgerrors.ErrUpstreamAuthMisroute
	}

	return nil, tgerrors.ErrUpstreamTransient
}

func fileBytes(result tg.UploadFileClass) []byte {
	switch f := result.(type) {
	case *tg.UploadFile:
		return f.Bytes
	default:
		return nil
	}
}
