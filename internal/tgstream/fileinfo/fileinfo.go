// Package fileinfo resolves a message id to the location metadata
// needed to stream it, generalizing original_source/tgfs/utils.py's
// FileInfo/get_fileinfo pair, and caches resolutions through a
// coalescing LRU grounded on original_source/tgfs/cache_util.py's
// AsyncLRUCache.
package fileinfo

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"
)

// Info is the resolved metadata a download needs: where the bytes
// live (Location, DCID) and how to describe them over HTTP.
type Info struct {
	FileSize int64
	MimeType string
	FileName string
	ID       int64
	DCID     int
	Location tg.InputFileLocationClass
}

// API is the subset of *tg.Client the resolver calls, narrowed for
// substitution in tests.
type API interface {
	ChannelsGetMessages(ctx context.Context, req *tg.ChannelsGetMessagesRequest) (tg.MessagesMessagesClass, error)
}

// Resolver fetches Info for a message id from the bin channel,
// validating the caller-supplied file name the way get_fileinfo
// rejects a mismatched name before trusting the request.
type Resolver struct {
	api        API
	binChannel tg.InputChannelClass
}

func NewResolver(api API, binChannel tg.InputChannelClass) *Resolver {
	return &Resolver{api: api, binChannel: binChannel}
}

// Resolve looks up msgID in the bin channel and returns its Info, or
// ErrMismatch if its actual filename differs from fileName — the
// request is presumed forged or stale in that case.
func (r *Resolver) Resolve(ctx context.Context, msgID int, fileName string) (*Info, error) {
	result, err := r.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: r.binChannel,
		ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: msgID}},
	})
	if err != nil {
		return nil, fmt.Errorf("fileinfo: fetch message %d: %w", msgID, err)
	}

	msg, err := extractMessage(result)
	if err != nil {
		return nil, err
	}

	info, err := mediaInfo(msg)
	if err != nil {
		return nil, err
	}
	if info.FileName != fileName {
		return nil, ErrMismatch
	}
	return info, nil
}

func extractMessage(result tg.MessagesMessagesClass) (*tg.Message, error) {
	channelMsgs, ok := result.(*tg.MessagesChannelMessages)
	if !ok {
		return nil, ErrNotFound
	}
	if len(channelMsgs.Messages) == 0 {
		return nil, ErrNotFound
	}
	msg, ok := channelMsgs.Messages[0].(*tg.Message)
	if !ok {
		return nil, ErrNotFound
	}
	return msg, nil
}

func mediaInfo(msg *tg.Message) (*Info, error) {
	switch media := msg.Media.(type) {
	case *tg.MessageMediaDocument:
		doc, ok := media.Document.(*tg.Document)
		if !ok {
			return nil, ErrNotFound
		}
		return &Info{
			FileSize: doc.Size,
			MimeType: doc.MimeType,
			FileName: documentFileName(doc, msg.ID),
			ID:       doc.ID,
			DCID:     doc.DCID,
			Location: &tg.InputDocumentFileLocation{
				ID:            doc.ID,
				AccessHash:    doc.AccessHash,
				FileReference: doc.FileReference,
			},
		}, nil

	case *tg.MessageMediaPhoto:
		photo, ok := media.Photo.(*tg.Photo)
		if !ok {
			return nil, ErrNotFound
		}
		size := largestPhotoSize(photo.Sizes)
		if size == nil {
			return nil, ErrNotFound
		}
		return &Info{
			FileSize: int64(size.Size),
			MimeType: "image/jpeg",
			FileName: fmt.Sprintf("%d.jpg", photo.ID),
			ID:       photo.ID,
			DCID:     photo.DCID,
			Location: &tg.InputPhotoFileLocation{
				ID:            photo.ID,
				AccessHash:    photo.AccessHash,
				FileReference: photo.FileReference,
				ThumbSize:     size.Type,
			},
		}, nil

	default:
		return nil, ErrNotFound
	}
}

// documentFileName mirrors get_filename: prefer the document's own
// DocumentAttributeFilename, falling back to "<id><ext>".
func documentFileName(doc *tg.Document, msgID int) string {
	for _, attr := range doc.Attributes {
		if named, ok := attr.(*tg.DocumentAttributeFilename); ok && named.FileName != "" {
			return named.FileName
		}
	}
	return fmt.Sprintf("%d%s", doc.ID, extFromMime(doc.MimeType))
}

func extFromMime(mime string) string {
	switch mime {
	case "video/mp4":
		return ".mp4"
	case "video/x-matroska":
		return ".mkv"
	case "audio/mpeg":
		return ".mp3"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	case "application/zip":
		return ".zip"
	default:
		return ""
	}
}

func largestPhotoSize(sizes []tg.PhotoSizeClass) *tg.PhotoSize {
	var best *tg.PhotoSize
	for _, s := range sizes {
		ps, ok := s.(*tg.PhotoSize)
		if !ok {
			continue
		}
		if best == nil || ps.Size > best.Size {
			best = ps
		}
	}
	return best
}
