package transfer

import (
	"bytes"
	"context"
	"testing"

	"go.uber.org/zap"

	"tgfs/internal/tgstream/dcpool/dcpooltest"
)

// directPool hands fn straight to the wrapped API, standing in for
// dcpool.Manager.Lease without dialing anything.
type directPool struct {
	api API
}

func (p directPool) Lease(ctx context.Context, fn func(API) error) error {
	return fn(p.api)
}

type noWaitFloodWaiter struct {
	waited bool
}

func (w *noWaitFloodWaiter) Wait(ctx context.Context, seconds int) error {
	w.waited = true
	return nil
}

func TestDownloaderStreamWritesFullRange(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 3*1024*1024)
	blob := &dcpooltest.Blob{Data: data}
	downloader := NewDownloader(zap.NewNop(), directPool{api: blob}, &noWaitFloodWaiter{})

	plan := PlanRange(int64(len(data)), 0, int64(len(data)-1), 1024*1024)

	var out bytes.Buffer
	if err := downloader.Stream(context.Background(), nil, plan, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Fatalf("expected full file to round-trip, got %d bytes", out.Len())
	}
}

func TestDownloaderStreamPartialRange(t *testing.T) {
	data := bytes.Repeat([]byte{0x7A}, 2*1024*1024)
	partSize := int64(1024 * 1024)
	blob := &dcpooltest.Blob{Data: data}
	downloader := NewDownloader(zap.NewNop(), directPool{api: blob}, &noWaitFloodWaiter{})

	offset, limit := partSize-5, partSize+5
	plan := PlanRange(int64(len(data)), offset, limit, partSize)

	var out bytes.Buffer
	if err := downloader.Stream(context.Background(), nil, plan, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := data[offset : limit+1]
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("expected %d bytes, got %d", len(want), out.Len())
	}
}

func TestDownloaderStreamRetriesOnceAfterFloodWait(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, 1024*1024)
	flood := &dcpooltest.FloodOnce{Blob: &dcpooltest.Blob{Data: data}, Seconds: 1}
	waiter := &noWaitFloodWaiter{}
	downloader := NewDownloader(zap.NewNop(), directPool{api: flood}, waiter)

	plan := PlanRange(int64(len(data)), 0, int64(len(data)-1), int64(len(data)))

	var out bytes.Buffer
	if err := downloader.Stream(context.Background(), nil, plan, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !waiter.waited {
		t.Error("expected the flood-wait retry path to run")
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Fatalf("expected full file after retry, got %d bytes", out.Len())
	}
}

func TestDownloaderStreamPropagatesCancellation(t *testing.T) {
	data := bytes.Repeat([]byte{0x09}, 4*1024*1024)
	blob := &dcpooltest.Blob{Data: data}
	downloader := NewDownloader(zap.NewNop(), directPool{api: blob}, &noWaitFloodWaiter{})

	plan := PlanRange(int64(len(data)), 0, int64(len(data)-1), 1024*1024)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := downloader.Stream(ctx, nil, plan, &out)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
