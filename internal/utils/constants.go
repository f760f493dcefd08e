package utils

// Retry configuration
const (
	DefaultMaxRetries   = 3
	DefaultRetryDelayMs = 1000
	MaxRetryDelayMs     = 32000
)

// Default HTTP timeout for remote store calls, in seconds
const DefaultRequestTimeoutSeconds = 60

// Schema version for the CLI JSON envelope
const SchemaVersion = "1.0"

// XLSXMimeType is the content type of .xlsx workbooks.
const XLSXMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MimeTypeFolder is the Drive MIME type that marks an item as a folder.
const MimeTypeFolder = "application/vnd.google-apps.folder"
