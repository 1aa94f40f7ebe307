package archive

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Magic-byte MIME sniffing for inline payloads pulled out of legacy files.
// Detection is constrained to the element's media kind; unrecognized bytes
// fall back to a permissive octet-stream type so migration never fails on
// odd-but-valid media.

// DetectImageMIME sniffs an image payload.
func DetectImageMIME(data []byte) string {
	return detectKind(data, "image/", "application/octet-stream")
}

// DetectAudioMIME sniffs an audio payload.
func DetectAudioMIME(data []byte) string {
	return detectKind(data, "audio/", "audio/octet-stream")
}

// DetectVideoMIME sniffs a video payload.
func DetectVideoMIME(data []byte) string {
	return detectKind(data, "video/", "video/octet-stream")
}

func detectKind(data []byte, wantPrefix, fallback string) string {
	if len(data) == 0 {
		return fallback
	}
	detected := mimetype.Detect(data).String()
	if strings.HasPrefix(detected, wantPrefix) {
		return detected
	}
	return fallback
}
