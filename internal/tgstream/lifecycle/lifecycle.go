// Package lifecycle sequences gateway startup and shutdown: connecting
// the primary and auxiliary bot clients, resolving the bin channel,
// publishing each client's auth key to its DC pools, and tearing
// everything down on signal — generalizing the module-level
// client/transfer construction in original_source/tgfs/telegram.py
// plus the signal handling in the teacher's cmd/vget-server/main.go.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"tgfs/internal/tgstream/dcpool"
	"tgfs/internal/tgstream/dispatcher"
)

// dcIDs are the five standard Telegram data centers, matching the
// dc_managers dict DCConnectionManager builds one-per-DC.
var dcIDs = [...]int{1, 2, 3, 4, 5}

// ClientSet is one authenticated bot client plus the per-DC pools it
// seeds its auth key into, paired with a dispatcher.Worker tracking
// its load.
type ClientSet struct {
	Worker *dispatcher.Worker
	Client *telegram.Client
	API    *tg.Client
	Pools  map[int]*dcpool.Manager
}

// Bootstrap connects one bot client (the primary token or a
// MULTI_TOKEN{N} auxiliary) and builds its DC pool set, matching
// ParallelTransferrer.__init__ plus post_init. It returns once the
// client is authorized and its pools are seeded; the client keeps
// running until ctx is canceled. The bin channel is resolved
// separately by ResolveBinChannel.
func Bootstrap(ctx context.Context, log *zap.Logger, apiID int, apiHash, botToken string, connLimit int, workerID int) (*ClientSet, error) {
	storage := &session.StorageMemory{}
	clientLog := log.Named(fmt.Sprintf("client%d", workerID))
	client := telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: storage,
		Logger:         clientLog,
	})

	pools := make(map[int]*dcpool.Manager, len(dcIDs))
	for _, dcID := range dcIDs {
		pools[dcID] = dcpool.NewManager(clientLog, apiID, apiHash, dcID, connLimit)
	}

	ready := make(chan error, 1)
	started := make(chan struct{})
	var api *tg.Client
	go func() {
		ready <- client.Run(ctx, func(ctx context.Context) error {
			if _, err := client.Auth().Bot(ctx, botToken); err != nil {
				return fmt.Errorf("lifecycle: bot auth for client %d: %w", workerID, err)
			}
			api = client.API()

			mainDC, err := client.MainDC(ctx)
			if err != nil {
				return fmt.Errorf("lifecycle: resolve main dc for client %d: %w", workerID, err)
			}

			// The client's own session already carries a usable auth
			// key for its main DC — seed that pool directly rather
			// than round-tripping through ExportAuthorization, the
			// same shortcut post_init takes.
			data, err := storage.LoadSession(ctx)
			if err != nil {
				return fmt.Errorf("lifecycle: load session for client %d: %w", workerID, err)
			}
			pools[mainDC].SeedAuthKey(data)

			for _, dcID := range dcIDs {
				if dcID == mainDC {
					continue
				}
				if err := pools[dcID].ExportAuthFrom(ctx, api); err != nil {
					clientLog.Warn("deferring dc auth export", zap.Int("dc_id", dcID), zap.Error(err))
				}
			}

			clientLog.Info("client ready")
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-started:
	case err := <-ready:
		if err != nil && ctx.Err() == nil {
			return nil, err
		}
	case <-ctx.Done():
	}

	return &ClientSet{
		Worker: &dispatcher.Worker{ID: workerID},
		Client: client,
		API:    api,
		Pools:  pools,
	}, nil
}

// DialogsAPI is the subset of *tg.Client ResolveBinChannel needs,
// narrowed so tests can substitute a fake paginated dialog list.
type DialogsAPI interface {
	MessagesGetDialogs(ctx context.Context, req *tg.MessagesGetDialogsRequest) (tg.MessagesDialogsClass, error)
}

// ResolveBinChannel finds the InputChannel for the numeric channel id
// configured as BIN_CHANNEL by paging through the client's own dialog
// list, the same approach the teacher's resolvePrivateChannel /
// getAllChannels pair uses to turn a bare channel id into an
// access-hash-bearing reference.
func ResolveBinChannel(ctx context.Context, api DialogsAPI, channelID int64) (*tg.InputChannel, error) {
	var offsetDate, offsetID int
	var offsetPeer tg.InputPeerClass = &tg.InputPeerEmpty{}

	for {
		dialogs, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
			OffsetPeer: offsetPeer,
			OffsetDate: offsetDate,
			OffsetID:   offsetID,
			Limit:      100,
		})
		if err != nil {
			return nil, fmt.Errorf("lifecycle: list dialogs: %w", err)
		}

		var chats []tg.ChatClass
		var messages []tg.MessageClass
		done := true

		switch d := dialogs.(type) {
		case *tg.MessagesDialogs:
			chats, messages = d.Chats, d.Messages
		case *tg.MessagesDialogsSlice:
			chats, messages = d.Chats, d.Messages
			done = len(d.Dialogs) < 100
		}

		for _, chat := range chats {
			if channel, ok := chat.(*tg.Channel); ok && channel.ID == channelID {
				return &tg.InputChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}, nil
			}
		}

		if done || len(messages) == 0 {
			break
		}
		last, ok := messages[len(messages)-1].(*tg.Message)
		if !ok {
			break
		}
		offsetDate, offsetID = last.Date, last.ID
	}

	return nil, fmt.Errorf("lifecycle: bin channel %d not found among joined dialogs", channelID)
}

// Shutdown disconnects every pool in every client set.
func Shutdown(sets []*ClientSet) {
	for _, cs := range sets {
		for _, pool := range cs.Pools {
			pool.Disconnect()
		}
	}
}
