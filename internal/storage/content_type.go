package storage

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
)

// DetectContentType picks a MIME type for an object. An explicit type
// wins, then the key's extension, then sniffing the first 512 bytes of
// data. The fallback is application/octet-stream.
func DetectContentType(providedType, key string, data io.Reader) string {
	if providedType != "" {
		return providedType
	}

	switch ext := strings.ToLower(path.Ext(key)); ext {
	case ".ndjson":
		return "application/x-ndjson"
	case "":
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}

	if data != nil {
		buf := make([]byte, 512)
		n, err := io.ReadFull(data, buf)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return http.DetectContentType(buf[:n])
		}
	}

	return "application/octet-stream"
}

// imageTypes lists the formats the image handler can decode and encode.
var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// IsImageType reports whether contentType is a resizable image format.
// Parameters such as charset are ignored.
func IsImageType(contentType string) bool {
	base, _, _ := strings.Cut(contentType, ";")
	return imageTypes[strings.ToLower(strings.TrimSpace(base))]
}
