// Package files stores images users send to the bot.
package files

import (
	"errors"
	"time"
)

// FileType represents the kind of Telegram attachment that was saved.
type FileType string

const (
	FileTypePhoto FileType = "photo"
	FileTypeImage FileType = "image" // jpeg sent as document
)

// ErrNoImage is returned for messages without a usable image.
var ErrNoImage = errors.New("message has no jpeg image")

// SavedFile describes an attachment written to disk.
type SavedFile struct {
	FileType FileType
	FileID   string
	Path     string
	Size     int64
	// Duration is the download time including retries.
	Duration time.Duration
}
