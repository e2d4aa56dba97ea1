// Package dcpooltest provides a fake upload.getFile backend for
// exercising transfer.Downloader without dialing a real data center,
// standing in for the in-process test doubles the pack's streaming
// examples use instead of live network fixtures.
package dcpooltest

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// Blob serves a fixed byte slice through UploadGetFile, chunked at
// whatever Limit the caller requests, so tests can drive
// transfer.Downloader end to end against known bytes.
type Blob struct {
	Data []byte
}

func (b *Blob) UploadGetFile(ctx context.Context, req *tg.UploadGetFileRequest) (tg.UploadFileClass, error) {
	start := int(req.Offset)
	if start >= len(b.Data) {
		return &tg.UploadFile{Bytes: nil}, nil
	}
	end := start + req.Limit
	if end > len(b.Data) {
		end = len(b.Data)
	}
	return &tg.UploadFile{Bytes: b.Data[start:end]}, nil
}

// FloodOnce fails the first call to UploadGetFile with a FLOOD_WAIT
// error, then delegates to an underlying Blob, for exercising the
// single-retry path in transfer.Downloader.
type FloodOnce struct {
	Blob    *Blob
	Seconds int
	failed  bool
}

func (f *FloodOnce) UploadGetFile(ctx context.Context, req *tg.UploadGetFileRequest) (tg.UploadFileClass, error) {
	if !f.failed {
		f.failed = true
		return nil, tgerr.New(420, fmt.Sprintf("FLOOD_WAIT_%d", f.Seconds))
	}
	return f.Blob.UploadGetFile(ctx, req)
}
