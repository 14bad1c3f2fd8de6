// Package media stores binary chat payloads (images, voice clips) and
// hands back public URLs. Upload always happens before the message row
// is inserted, so a failed upload never leaves a dangling message.
package media

import "context"

// Uploader stores a binary blob and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, path string, contentType string, data []byte) (string, error)
}
