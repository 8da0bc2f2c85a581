// File: internal/network/compression.go
package network

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

const acceptEncodings = "gzip, deflate, br"

// Decompression readers are pooled; page loads unwrap dozens of small bodies.
var (
	gzipReaders   = sync.Pool{New: func() interface{} { return new(gzip.Reader) }}
	brotliReaders = sync.Pool{New: func() interface{} { return brotli.NewReader(nil) }}
)

// drainedSource detaches a pooled reader from the response body it was
// reading. A zero-length strings.Reader is stateless, so sharing one is fine.
var drainedSource = strings.NewReader("")

// decompressingTransport advertises the encodings the client can unwrap and
// hands callers a plain body regardless of what the server chose.
type decompressingTransport struct {
	next http.RoundTripper
}

func newDecompressingTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &decompressingTransport{next: next}
}

func (t *decompressingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", acceptEncodings)
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := decompressBody(resp); err != nil {
		// The body may be partially consumed at this point; the response
		// cannot be salvaged.
		_ = resp.Body.Close()
		return nil, fmt.Errorf("decompress response: %w", err)
	}
	return resp, nil
}

// decompressBody rewraps resp.Body so reads return decoded bytes. Layered
// encodings (rare, but legal) unwrap in reverse application order.
func decompressBody(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	// Layers may arrive as repeated header lines or one comma-joined value.
	var layers []string
	for _, v := range resp.Header.Values("Content-Encoding") {
		for _, part := range strings.Split(v, ",") {
			layers = append(layers, strings.ToLower(strings.TrimSpace(part)))
		}
	}
	if len(layers) == 0 {
		return nil
	}

	for i := len(layers) - 1; i >= 0; i-- {
		layer := layers[i]

		var rc io.ReadCloser
		var release func()
		switch layer {
		case "gzip", "x-gzip":
			zr := gzipReaders.Get().(*gzip.Reader)
			if err := zr.Reset(resp.Body); err != nil {
				gzipReaders.Put(zr)
				return fmt.Errorf("gzip: %w", err)
			}
			rc = zr
			release = func() {
				_ = zr.Reset(drainedSource)
				gzipReaders.Put(zr)
			}
		case "deflate":
			r, err := zlibOrFlate(resp.Body)
			if err != nil {
				return fmt.Errorf("deflate: %w", err)
			}
			rc = r
		case "br":
			br := brotliReaders.Get().(*brotli.Reader)
			if err := br.Reset(resp.Body); err != nil {
				brotliReaders.Put(br)
				return fmt.Errorf("brotli: %w", err)
			}
			rc = io.NopCloser(br)
			release = func() {
				_ = br.Reset(drainedSource)
				brotliReaders.Put(br)
			}
		case "", "identity":
			continue
		default:
			return fmt.Errorf("unsupported content encoding %q", layer)
		}

		resp.Body = &decodedBody{ReadCloser: rc, wrapped: resp.Body, release: release}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// decodedBody closes the decoder and the wrapped body together and returns
// pooled readers once both are done with the stream.
type decodedBody struct {
	io.ReadCloser
	wrapped io.ReadCloser
	release func()
}

func (b *decodedBody) Close() error {
	err := errors.Join(b.ReadCloser.Close(), b.wrapped.Close())
	if b.release != nil {
		b.release()
		b.release = nil
	}
	return err
}

// zlibOrFlate handles both things servers mean by "deflate": the zlib
// envelope RFC 9110 specifies and the raw stream some servers send anyway.
func zlibOrFlate(r io.Reader) (io.ReadCloser, error) {
	buffered := newReplayReader(r)
	if zr, err := zlib.NewReader(buffered); err == nil {
		return zr, nil
	}
	buffered.rewind()
	return flate.NewReader(buffered), nil
}

// replayReader buffers what the first decode attempt consumed so a second
// attempt can start over on the same stream.
type replayReader struct {
	r   io.Reader
	buf bytes.Buffer
	src io.Reader
}

func newReplayReader(src io.Reader) *replayReader {
	rr := &replayReader{src: src}
	rr.r = io.TeeReader(src, &rr.buf)
	return rr
}

func (rr *replayReader) Read(p []byte) (int, error) {
	return rr.r.Read(p)
}

func (rr *replayReader) rewind() {
	rr.r = io.MultiReader(bytes.NewReader(rr.buf.Bytes()), rr.src)
}
