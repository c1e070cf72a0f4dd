package httpapi

import (
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Upload windows fit a photographed page in one stream.
const (
	h2MaxStreams       = 64
	h2StreamUploadBuf  = 4 << 20
	h2ConnUploadBuf    = 16 << 20
	h2IdleTimeout      = 2 * time.Minute
	h2MaxReadFrameSize = 1 << 20
)

// H2CHandler serves handler over cleartext HTTP/2 as well as HTTP/1.1.
func H2CHandler(handler http.Handler) http.Handler {
	return h2c.NewHandler(handler, &http2.Server{
		MaxConcurrentStreams:         h2MaxStreams,
		MaxUploadBufferPerStream:     h2StreamUploadBuf,
		MaxUploadBufferPerConnection: h2ConnUploadBuf,
		IdleTimeout:                  h2IdleTimeout,
		MaxReadFrameSize:             h2MaxReadFrameSize,
	})
}
