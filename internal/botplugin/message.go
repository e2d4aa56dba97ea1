// Package botplugin implements the bot-facing side of the gateway: a
// private chat sent a file gets it forwarded into the bin channel and
// replied to with a streamable link, generalizing the NewMessage
// handlers in original_source/tgfs/plugins/message.py.
package botplugin

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// Sender is the subset of *tg.Client the plugin needs to forward
// incoming files and reply with the generated link.
type Sender interface {
	MessagesForwardMessages(ctx context.Context, req *tg.MessagesForwardMessagesRequest) (tg.UpdatesClass, error)
	MessagesSendMessage(ctx context.Context, req *tg.MessagesSendMessageRequest) (tg.UpdatesClass, error)
}

// Handler forwards incoming private files to the bin channel and
// replies with their public download link.
type Handler struct {
	log        *zap.Logger
	api        Sender
	binChannel tg.InputPeerClass
	publicURL  string
}

func NewHandler(log *zap.Logger, api Sender, binChannel tg.InputPeerClass, publicURL string) *Handler {
	return &Handler{log: log.Named("botplugin"), api: api, binChannel: binChannel, publicURL: publicURL}
}

// HandleFileMessage mirrors handle_file_message: forward the message
// carrying a file into the bin channel, then reply to the sender with
// a link built from the forwarded message's new id and file name.
func (h *Handler) HandleFileMessage(ctx context.Context, fromPeer tg.InputPeerClass, msgID int, fileName string) error {
	fwd, err := h.api.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		FromPeer: fromPeer,
		ID:       []int{msgID},
		RandomID: []int64{randomID()},
		ToPeer:   h.binChannel,
	})
	if err != nil {
		return fmt.Errorf("botplugin: forward message %d: %w", msgID, err)
	}

	newID, err := forwardedMessageID(fwd)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/%d/%s", h.publicURL, newID, url.PathEscape(fileName))
	_, err = h.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     fromPeer,
		Message:  link,
		RandomID: randomID(),
	})
	if err != nil {
		return fmt.Errorf("botplugin: reply with link: %w", err)
	}

	h.log.Info("generated link", zap.String("url", link))
	return nil
}

// HandleTextMessage mirrors handle_text_message: a private message
// with no file attached gets a one-line usage hint back.
func (h *Handler) HandleTextMessage(ctx context.Context, toPeer tg.InputPeerClass) error {
	_, err := h.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     toPeer,
		Message:  "Send me any telegram file or photo I will generate a link for it",
		RandomID: randomID(),
	})
	return err
}

func forwardedMessageID(updates tg.UpdatesClass) (int, error) {
	u, ok := updates.(*tg.Updates)
	if !ok {
		return 0, fmt.Errorf("botplugin: unexpected forward response type %T", updates)
	}
	for _, upd := range u.Updates {
		if msgUpd, ok := upd.(*tg.UpdateNewChannelMessage); ok {
			if msg, ok := msgUpd.Message.(*tg.Message); ok {
				return msg.ID, nil
			}
		}
	}
	return 0, fmt.Errorf("botplugin: forwarded message id not found in response")
}

// randomID produces the client-chosen random id MTProto requires on
// each outgoing message to de-duplicate retries.
func randomID() int64 {
	return idSource.next()
}
