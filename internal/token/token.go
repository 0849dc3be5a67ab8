// Package token encodes a quality choice into inline-button callback data.
//
// Layout: dl_q=<format id>=<container>=<registry key>. The registry key is the
// last field and may itself contain the delimiter.
package token

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Prefix tags callback data produced by this package.
	Prefix = "dl_q"
	// MaxBytes is Telegram's limit for callback_data.
	MaxBytes = 64

	delimiter = "="
	fields    = 4
)

var (
	// ErrTooLong means the encoded token does not fit into MaxBytes.
	ErrTooLong = errors.New("selection token exceeds callback data limit")
	// ErrMalformedToken means the callback data is not a valid selection token.
	ErrMalformedToken = errors.New("malformed selection token")
)

// Selection is the decoded content of a token.
type Selection struct {
	FormatID  string
	Container string
	Key       string
}

// Encode builds the callback data for one menu option.
func Encode(formatID, container, key string) (string, error) {
	if formatID == "" || container == "" || key == "" {
		return "", fmt.Errorf("%w: empty field", ErrMalformedToken)
	}
	if strings.Contains(formatID, delimiter) || strings.Contains(container, delimiter) {
		return "", fmt.Errorf("%w: delimiter in format id or container", ErrMalformedToken)
	}

	tok := strings.Join([]string{Prefix, formatID, container, key}, delimiter)
	if len(tok) > MaxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLong, len(tok))
	}
	return tok, nil
}

// Decode parses callback data produced by Encode.
func Decode(data string) (Selection, error) {
	parts := strings.SplitN(data, delimiter, fields)
	if len(parts) != fields || parts[0] != Prefix {
		return Selection{}, ErrMalformedToken
	}
	for _, p := range parts[1:] {
		if p == "" {
			return Selection{}, ErrMalformedToken
		}
	}
	return Selection{
		FormatID:  parts[1],
		Container: parts[2],
		Key:       parts[3],
	}, nil
}

// HasPrefix reports whether callback data belongs to this package.
func HasPrefix(data string) bool {
	return strings.HasPrefix(data, Prefix+delimiter)
}
