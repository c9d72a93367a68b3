package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()

	payload, err := exporter.Render(Dataset{
		Headers: []string{"school", "downloads"},
		Rows: []map[string]string{
			{"school": "SMA Harapan", "downloads": "12"},
			{"school": "SMA Nusantara", "downloads": "3"},
		},
	})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(payload, utf8BOM))
	body := strings.TrimPrefix(string(payload), string(utf8BOM))
	lines := strings.Split(strings.TrimSuffix(body, "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "school,downloads", lines[0])
	assert.Equal(t, "SMA Harapan,12", lines[1])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Dataset{})
	assert.Error(t, err)
}
