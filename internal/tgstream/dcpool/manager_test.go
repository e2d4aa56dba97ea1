package dcpool

import (
	"context"
	"testing"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

type fakeMainAPI struct {
	calls int
	auth  *tg.AuthExportedAuthorization
	err   error
}

func (f *fakeMainAPI) AuthExportAuthorization(ctx context.Context, dcID int) (*tg.AuthExportedAuthorization, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.auth, nil
}

func TestSeedAuthKeySkipsExport(t *testing.T) {
	m := NewManager(zap.NewNop(), 1, "hash", 2, 5)
	m.SeedAuthKey([]byte("preloaded"))

	api := &fakeMainAPI{auth: &tg.AuthExportedAuthorization{Bytes: []byte("exported")}}
	if err := m.ExportAuthFrom(context.Background(), api); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.calls != 0 {
		t.Errorf("expected the export round trip to be skipped, got %d calls", api.calls)
	}
	if string(m.authKeyData) != "preloaded" {
		t.Errorf("expected the seeded key to survive, got %q", m.authKeyData)
	}
}

func TestExportAuthFromStoresExportedKey(t *testing.T) {
	m := NewManager(zap.NewNop(), 1, "hash", 2, 5)
	api := &fakeMainAPI{auth: &tg.AuthExportedAuthorization{Bytes: []byte("exported")}}

	if err := m.ExportAuthFrom(context.Background(), api); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.calls != 1 {
		t.Errorf("expected exactly one export call, got %d", api.calls)
	}
	if string(m.authKeyData) != "exported" {
		t.Errorf("expected the exported key to be stored, got %q", m.authKeyData)
	}

	// A second call must not re-export once a key is already present.
	if err := m.ExportAuthFrom(context.Background(), api); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.calls != 1 {
		t.Errorf("expected the second call to be a no-op, got %d calls", api.calls)
	}
}
