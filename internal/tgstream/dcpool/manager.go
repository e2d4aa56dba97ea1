// Package dcpool manages per-data-center connection pools used to
// stream file chunks, generalizing original_source/tgfs/paralleltransfer.py's
// Connection/DCConnectionManager pair to gotd/td idioms.
package dcpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"tgfs/internal/tgstream/transfer"
)

// Connection is one dedicated client pinned to a single data center,
// standing in for the raw MTProtoSender the original process pooled
// directly. users counts in-flight downloads borrowing the connection.
type Connection struct {
	log    *zap.Logger
	client *telegram.Client
	api    *tg.Client
	cancel context.CancelFunc

	mu    sync.Mutex
	users int
}

// API exposes the generated RPC surface for the pinned data center.
func (c *Connection) API() *tg.Client { return c.api }

func (c *Connection) addUser(delta int) {
	c.mu.Lock()
	c.users += delta
	c.mu.Unlock()
}

func (c *Connection) userCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.users
}

// Manager owns every Connection opened against one data center, and
// enforces the shared CONNECTION_LIMIT across them. It mirrors
// DCConnectionManager in original_source/tgfs/paralleltransfer.py.
type Manager struct {
	log    *zap.Logger
	apiID  int
	apiHash string
	dcID   int

	connLimit int

	listMu      sync.Mutex
	connections []*Connection

	// authKeyData carries the exported auth key bytes for this DC once
	// available, so every new Connection skips its own export round
	// trip. Populated either from the main client's own session (when
	// the main client already lives in this DC) or via ExportAuthorization
	// / ImportAuthorization against the main client.
	authMu      sync.Mutex
	authKeyData []byte
}

// NewManager constructs a pool bound to a single data center. apiID and
// apiHash are the same application credentials the main client uses;
// connLimit is tgstreamconfig.Config.ConnectionLimit.
func NewManager(log *zap.Logger, apiID int, apiHash string, dcID, connLimit int) *Manager {
	return &Manager{
		log:       log.Named(fmt.Sprintf("dc%d", dcID)),
		apiID:     apiID,
		apiHash:   apiHash,
		dcID:      dcID,
		connLimit: connLimit,
	}
}

// SeedAuthKey preloads the auth key bytes for this DC, used when the
// main client's own session already lives here (the DC_ID_INVALID case
// in the original, where the main client's auth_key is copied as-is).
func (m *Manager) SeedAuthKey(authKey []byte) {
	m.authMu.Lock()
	m.authKeyData = authKey
	m.authMu.Unlock()
}

// AuthExporter is the subset of *tg.Client ExportAuthFrom needs,
// narrowed so tests can substitute a fake main client.
type AuthExporter interface {
	AuthExportAuthorization(ctx context.Context, dcID int) (*tg.AuthExportedAuthorization, error)
}

// ExportAuthFrom performs the ExportAuthorization/ImportAuthorization
// handshake against the main client's API, then pins the resulting
// session into a fresh client for this DC. It must run once, the first
// time a Connection is opened for a DC the main client isn't already
// authorized against.
func (m *Manager) ExportAuthFrom(ctx context.Context, mainAPI AuthExporter) error {
	m.authMu.Lock()
	defer m.authMu.Unlock()
	if m.authKeyData != nil {
		return nil
	}

	auth, err := mainAPI.AuthExportAuthorization(ctx, m.dcID)
	if err != nil {
		return fmt.Errorf("dcpool: export authorization to dc%d: %w", m.dcID, err)
	}
	m.log.Debug("exported authorization", zap.Int("dc_id", m.dcID))
	m.authKeyData = auth.Bytes
	return nil
}

// newConnection dials a fresh *telegram.Client pinned to this DC and
// imports the previously exported authorization, mirroring
// DCConnectionManager._new_connection.
func (m *Manager) newConnection(ctx context.Context) (*Connection, error) {
	if len(m.connections) >= m.connLimit {
		return nil, fmt.Errorf("dcpool: connection limit %d reached for dc%d", m.connLimit, m.dcID)
	}

	index := len(m.connections) + 1
	connLog := m.log.Named(fmt.Sprintf("conn%d", index))

	m.authMu.Lock()
	authKey := m.authKeyData
	m.authMu.Unlock()
	if authKey == nil {
		return nil, fmt.Errorf("dcpool: no auth key available for dc%d", m.dcID)
	}

	// The auth key must already be in storage before Run dials, since
	// gotd/td loads the session as part of connection handshake rather
	// than after — unlike the original, which attaches auth_key to an
	// already-open MTProtoSender post hoc.
	storage := &session.StorageMemory{}
	if err := storage.StoreSession(ctx, authKey); err != nil {
		return nil, fmt.Errorf("dcpool: seeding session for dc%d: %w", m.dcID, err)
	}

	client := telegram.NewClient(m.apiID, m.apiHash, telegram.Options{
		DC:             m.dcID,
		DCList:         dcs.Prod(),
		SessionStorage: storage,
		Logger:         connLog,
	})

	connCtx, cancel := context.WithCancel(ctx)
	conn := &Connection{log: connLog, client: client, cancel: cancel}

	ready := make(chan struct{})
	go func() {
		if err := client.Run(connCtx, func(ctx context.Context) error {
			conn.api = client.API()
			connLog.Info("connected")
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		}); err != nil {
			connLog.Debug("connection run loop exited", zap.Error(err))
		}
	}()

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.connections = append(m.connections, conn)
	return conn, nil
}

// pickLeastLoaded returns the connection with the fewest in-flight
// users, or nil for an empty pool.
func pickLeastLoaded(conns []*Connection) *Connection {
	var best *Connection
	for _, c := range conns {
		if best == nil || c.userCount() < best.userCount() {
			best = c
		}
	}
	return best
}

// needsNewConnection reports whether the pool should open another
// connection rather than reuse best, matching _next_connection's rule:
// open a new one whenever the least-loaded connection is still busy
// (or there isn't one yet) and the pool has room to grow.
func needsNewConnection(best *Connection, poolSize, connLimit int) bool {
	busy := best == nil || best.userCount() > 0
	return busy && poolSize < connLimit
}

// nextConnection picks the least-loaded existing connection, opening a
// new one when the least-loaded connection is still busy and the pool
// has room — the same heuristic as _next_connection.
func (m *Manager) nextConnection(ctx context.Context) (*Connection, error) {
	best := pickLeastLoaded(m.connections)
	if needsNewConnection(best, len(m.connections), m.connLimit) {
		return m.newConnection(ctx)
	}
	if best == nil {
		return nil, fmt.Errorf("dcpool: no connection available for dc%d", m.dcID)
	}
	return best, nil
}

// LeaseConnection borrows a Connection for the duration of fn,
// incrementing its user count on entry and decrementing on every exit
// path via defer — the Go analogue of get_connection's
// asynccontextmanager.
func (m *Manager) LeaseConnection(ctx context.Context, fn func(*Connection) error) error {
	m.listMu.Lock()
	conn, err := m.nextConnection(ctx)
	m.listMu.Unlock()
	if err != nil {
		return err
	}

	conn.addUser(1)
	defer conn.addUser(-1)

	return fn(conn)
}

// Lease satisfies transfer.Pool by leasing a Connection and handing
// the caller its RPC client rather than the Connection itself, so
// transfer.Downloader stays decoupled from dcpool's connection
// bookkeeping.
func (m *Manager) Lease(ctx context.Context, fn func(transfer.API) error) error {
	return m.LeaseConnection(ctx, func(conn *Connection) error {
		return fn(conn.API())
	})
}

// Disconnect tears down every connection in the pool, matching
// DCConnectionManager.disconnect.
func (m *Manager) Disconnect() {
	m.listMu.Lock()
	defer m.listMu.Unlock()
	for _, c := range m.connections {
		if c.cancel != nil {
			c.cancel()
		}
	}
	m.connections = nil
}
