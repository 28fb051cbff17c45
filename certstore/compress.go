package certstore

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/jalmeida85/tls13srv/codec"
)

// ZlibCompressor implements RFC 8879's "zlib" certificate-compression
// algorithm using klauspost/compress's zlib package — a drop-in, faster
// reimplementation of the stdlib codec and the one compression library
// present anywhere in the example corpus (caddyserver-caddy's go.mod),
// so it is used here instead of compress/zlib.
type ZlibCompressor struct {
	Level int // zlib.DefaultCompression if zero
}

func (c ZlibCompressor) Algorithm() codec.CertCompressionAlgorithm {
	return codec.CertCompressionZlib
}

func (c ZlibCompressor) Compress(raw []byte) ([]byte, error) {
	level := c.Level
	if level == 0 {
		level = zlib.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c ZlibCompressor) Decompress(compressed []byte, uncompressedLength int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]byte, uncompressedLength)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
