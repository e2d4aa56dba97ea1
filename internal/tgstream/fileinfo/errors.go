package fileinfo

import "errors"

// ErrNotFound means msgID does not resolve to a media message in the
// bin channel.
var ErrNotFound = errors.New("fileinfo: message not found")

// ErrMismatch means the caller-supplied file name doesn't match the
// resolved message's actual file name.
var ErrMismatch = errors.New("fileinfo: file name mismatch")
