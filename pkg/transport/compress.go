package transport

import (
	"bytes"
	"sync"

	"github.com/hyp3rd/ewrap"
	"github.com/klauspost/compress/gzip"
)

var gzPool = sync.Pool{
	New: func() any {
		w := gzip.NewWriter(nil)

		return w
	},
}

func gzipBytes(payload []byte) ([]byte, error) {
	gz, ok := gzPool.Get().(*gzip.Writer)
	if !ok {
		gz = gzip.NewWriter(nil)
	}
	defer gzPool.Put(gz)

	var buf bytes.Buffer

	gz.Reset(&buf)

	_, err := gz.Write(payload)
	if err != nil {
		return nil, ewrap.Wrap(err, "gzip request body")
	}

	err = gz.Close()
	if err != nil {
		return nil, ewrap.Wrap(err, "close gzip writer")
	}

	return buf.Bytes(), nil
}
