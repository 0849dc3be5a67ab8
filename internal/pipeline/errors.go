package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/runixer/grabber/internal/extractor"
	"github.com/runixer/grabber/internal/token"
	"github.com/runixer/grabber/internal/workspace"
)

// Request failures. Each one ends the request with a single status edit.
var (
	ErrExtractionFailed  = extractor.ErrExtractionFailed
	ErrNoFormats         = errors.New("no formats")
	ErrNoEligibleFormats = errors.New("no eligible formats")
	ErrMalformedToken    = token.ErrMalformedToken
	ErrSelectionExpired  = errors.New("selection expired")
	ErrDownloadFailed    = extractor.ErrDownloadFailed
	ErrFileTooLarge      = errors.New("file too large")
	ErrUploadFailed      = errors.New("upload failed")
	// ErrCleanupFailed is only logged, never shown.
	ErrCleanupFailed = workspace.ErrCleanupFailed
)

// failure describes how an error is reported.
type failure struct {
	key    string // locale key
	kind   string // metrics and history label
	detail bool   // whether the key takes the underlying message
	cause  error
}

var failures = []failure{
	{key: "errors.timeout", kind: "timeout", cause: context.DeadlineExceeded},
	{key: "errors.extraction_failed", kind: "extraction_failed", detail: true, cause: ErrExtractionFailed},
	{key: "errors.no_formats", kind: "no_formats", cause: ErrNoFormats},
	{key: "errors.no_eligible_formats", kind: "no_eligible_formats", cause: ErrNoEligibleFormats},
	{key: "errors.malformed_token", kind: "malformed_token", cause: ErrMalformedToken},
	{key: "errors.selection_expired", kind: "selection_expired", cause: ErrSelectionExpired},
	{key: "errors.download_failed", kind: "download_failed", detail: true, cause: ErrDownloadFailed},
	{key: "errors.file_too_large", kind: "file_too_large", detail: true, cause: ErrFileTooLarge},
	{key: "errors.upload_failed", kind: "upload_failed", detail: true, cause: ErrUploadFailed},
}

var internalFailure = failure{key: "errors.internal", kind: "internal"}

func lookupFailure(err error) failure {
	for _, f := range failures {
		if errors.Is(err, f.cause) {
			return f
		}
	}
	return internalFailure
}

// FailureKind returns the short label of err.
func FailureKind(err error) string {
	return lookupFailure(err).kind
}

// describe renders the user-facing text for err.
func describe(tr func(string, ...interface{}) string, err error) string {
	f := lookupFailure(err)
	if f.detail {
		return tr(f.key, detail(err, f.cause))
	}
	return tr(f.key)
}

// detail strips the sentinel prefix from err's message, keeping what the
// collaborator reported.
func detail(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}
