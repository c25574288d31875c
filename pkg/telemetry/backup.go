package telemetry

import (
	"compress/gzip"
	"errors"
	"os"

	"github.com/opd-ai/go-vehicle/pkg/logging"
)

// gzipFile closes the gzip stream before the file underneath it
type gzipFile struct {
	*gzip.Writer
	file *os.File
}

func (g *gzipFile) Close() error {
	return errors.Join(g.Writer.Close(), g.file.Close())
}

// OpenBackupSink appends gzipped line protocol to the file at path. Each
// run adds a new gzip member, which gzip readers concatenate.
func OpenBackupSink(path string, logger *logging.Logger) (*InfluxSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, logging.WrapError(err, "failed to open telemetry backup %s", path)
	}
	return NewLineProtocolSink(&gzipFile{Writer: gzip.NewWriter(f), file: f}, logger), nil
}
