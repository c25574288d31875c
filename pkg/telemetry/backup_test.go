package telemetry

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackupSink_AppendsGzipMembers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.lp.gz")
	ctx := context.Background()

	for run := 0; run < 2; run++ {
		sink, err := OpenBackupSink(path, nil)
		require.NoError(t, err)
		sink.Record(ctx, testSample(0))
		require.NoError(t, sink.Close())
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, Measurement+","), "line %q", line)
	}
}

func TestOpenBackupSink_BadPath(t *testing.T) {
	_, err := OpenBackupSink(filepath.Join(t.TempDir(), "missing", "x.gz"), nil)
	assert.Error(t, err)
}
