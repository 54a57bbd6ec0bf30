package assets

import "fmt"

// DownloadError wraps a failure to fetch a document's bytes. Downloads can
// fail transiently, so callers treat it as retryable and keep the gift row.
type DownloadError struct {
	DocumentID string
	Err        error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading document %s: %v", e.DocumentID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// DecodeError wraps a failure to decode downloaded bytes, such as a gzip
// stream that does not decompress. The raw bytes are still stored when it
// occurs.
type DecodeError struct {
	DocumentID string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding document %s: %v", e.DocumentID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
