package extract

import (
	"encoding/base64"
	"net/http"
	"strings"
)

const defaultMediaType = "image/jpeg"

// sniffLen is a multiple of 4 so the prefix decodes without padding issues.
const sniffLen = 64

// ImageURL turns a request payload into a data URL. Payloads that already
// are data URLs pass through untouched; bare base64 gets a media type sniffed
// from its first bytes.
func ImageURL(payload string) string {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		return payload
	}
	return "data:" + sniffMediaType(payload) + ";base64," + payload
}

func sniffMediaType(b64 string) string {
	head := b64
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	head = head[:len(head)-len(head)%4]

	raw, err := base64.StdEncoding.DecodeString(head)
	if err != nil || len(raw) == 0 {
		return defaultMediaType
	}

	switch ct := http.DetectContentType(raw); ct {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return ct
	default:
		return defaultMediaType
	}
}
