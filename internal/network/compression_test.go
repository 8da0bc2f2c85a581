// File: internal/network/compression_test.go
package network

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet/api/schemas"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func brotliBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, err := bw.Write(data)
	require.NoError(t, err)
	require.NoError(t, bw.Close())
	return buf.Bytes()
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func flateBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	return buf.Bytes()
}

// encodedServer serves body verbatim with the given Content-Encoding header.
func encodedServer(t *testing.T, encoding string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if encoding != "" {
			w.Header().Set("Content-Encoding", encoding)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGzipResponsesArriveDecoded(t *testing.T) {
	srv := encodedServer(t, "gzip", gzipBytes(t, []byte("hello gzip")))

	c := newTestClient(t, nil)
	resp, err := c.Do(context.Background(), schemas.FetchRequest{URL: srv.URL})
	require.NoError(t, err)

	assert.Equal(t, "hello gzip", string(resp.Body))
	assert.Empty(t, resp.Header("Content-Encoding"), "the encoding header is dropped once decoded")
}

func TestBrotliResponsesArriveDecoded(t *testing.T) {
	srv := encodedServer(t, "br", brotliBytes(t, []byte("hello brotli")))

	c := newTestClient(t, nil)
	resp, err := c.Do(context.Background(), schemas.FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "hello brotli", string(resp.Body))
}

func TestDeflateHandlesBothWireFormats(t *testing.T) {
	cases := []struct {
		name string
		body func(t *testing.T, data []byte) []byte
	}{
		{"zlib envelope", zlibBytes},
		{"raw stream", flateBytes},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := encodedServer(t, "deflate", tc.body(t, []byte("hello deflate")))

			c := newTestClient(t, nil)
			resp, err := c.Do(context.Background(), schemas.FetchRequest{URL: srv.URL})
			require.NoError(t, err)
			assert.Equal(t, "hello deflate", string(resp.Body))
		})
	}
}

func TestRequestsAdvertiseSupportedEncodings(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Accept-Encoding")
	}))
	defer srv.Close()

	c := newTestClient(t, nil)
	_, err := c.Do(context.Background(), schemas.FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, acceptEncodings, got)
}

func TestUnsupportedEncodingFailsTheFetch(t *testing.T) {
	srv := encodedServer(t, "zstd", []byte{0x28, 0xb5, 0x2f, 0xfd})

	c := newTestClient(t, nil)
	_, err := c.Do(context.Background(), schemas.FetchRequest{URL: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported content encoding "zstd"`)
}

func TestDecompressBodyUnwrapsLayeredEncodings(t *testing.T) {
	// Applied deflate first, then gzip; the header lists them in that order.
	payload := []byte("layered payload")
	wire := gzipBytes(t, zlibBytes(t, payload))

	resp := &http.Response{
		Header: http.Header{"Content-Encoding": []string{"deflate, gzip"}},
		Body:   io.NopCloser(bytes.NewReader(wire)),
	}
	require.NoError(t, decompressBody(resp))
	defer resp.Body.Close()

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
	assert.True(t, resp.Uncompressed)
	assert.Equal(t, int64(-1), resp.ContentLength)
}

func TestDecompressBodyLeavesPlainResponsesAlone(t *testing.T) {
	resp := &http.Response{
		Header: http.Header{},
		Body:   io.NopCloser(bytes.NewReader([]byte("plain"))),
	}
	require.NoError(t, decompressBody(resp))

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(got))
	assert.False(t, resp.Uncompressed)
}

func TestZlibOrFlateSniffsTheEnvelope(t *testing.T) {
	payload := []byte("either flavor decodes")

	for _, tc := range []struct {
		name string
		wire []byte
	}{
		{"zlib", zlibBytes(t, payload)},
		{"raw flate", flateBytes(t, payload)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rc, err := zlibOrFlate(bytes.NewReader(tc.wire))
			require.NoError(t, err)
			defer rc.Close()

			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}
