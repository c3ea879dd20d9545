package towerhttp

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// brotliCompress wraps a JSON handler with brotli compression when the
// client advertises "br" support. Only ever applied to the JSON read
// endpoints: /stream must never gain a Content-Encoding, since Tower's
// raw continuous MP3 body is not a framed, re-encodable payload.
func brotliCompress(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "br") {
			next(w, r)
			return
		}
		bw := brotli.NewWriterLevel(w, brotli.DefaultCompression)
		defer bw.Close()
		w.Header().Set("Content-Encoding", "br")
		w.Header().Del("Content-Length")
		next(&brotliResponseWriter{ResponseWriter: w, w: bw}, r)
	}
}

// brotliResponseWriter redirects Write calls through the brotli encoder
// while leaving header/status-code handling on the underlying writer.
type brotliResponseWriter struct {
	http.ResponseWriter
	w *brotli.Writer
}

func (b *brotliResponseWriter) Write(p []byte) (int, error) {
	return b.w.Write(p)
}
