package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeWriterParsesCategory(t *testing.T) {
	Shutdown()

	dir := t.TempDir()
	Init(Config{Debug: true, LogDir: dir})
	defer Shutdown()

	bw := NewBridgeWriter("legacy")

	tests := []struct {
		input    string
		wantComp string
		wantMsg  string
	}{
		{"[SCAN] 3 panes\n", CompTopology, "3 panes"},
		{"[PIPE] attached\n", CompAttach, "attached"},
		{"[HOOK] layout changed\n", CompNotify, "layout changed"},
		{"plain message without category\n", "legacy", "plain message without category"},
		{"2024/01/02 15:04:05 [RENAME] @1\n", CompEngine, "@1"},
	}
	for _, tt := range tests {
		_, _ = bw.Write([]byte(tt.input))
	}

	records := readRecords(t, filepath.Join(dir, LogFileName))
	require.Len(t, records, len(tests))
	for i, tt := range tests {
		assert.Equal(t, tt.wantComp, records[i]["component"], tt.input)
		assert.Equal(t, tt.wantMsg, records[i]["msg"], tt.input)
	}
}

func TestBridgeWriterEmptyInput(t *testing.T) {
	Shutdown()

	dir := t.TempDir()
	Init(Config{Debug: true, LogDir: dir})
	defer Shutdown()

	n, err := NewBridgeWriter("legacy").Write([]byte("   \n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	data, _ := os.ReadFile(filepath.Join(dir, LogFileName))
	assert.Empty(t, data)
}

func TestStripLogTimestamp(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"15:04:05.000000 hello", "hello"},
		{"15:04:05 hello", "hello"},
		{"2024/01/02 15:04:05 hello", "hello"},
		{"no timestamp here", "no timestamp here"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripLogTimestamp(tt.input), tt.input)
	}
}
