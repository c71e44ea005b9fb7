package cliutil

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	tests := []struct {
		name string
		t    *time.Time
		want string
	}{
		{"never", nil, "Never"},
		{"zero", &time.Time{}, "Never"},
		{"seconds", at(30 * time.Second), "Just now"},
		{"minutes", at(5 * time.Minute), "5m ago"},
		{"hours", at(3 * time.Hour), "3h ago"},
		{"days", at(50 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAge(tt.t, now))
		})
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]int{"total": 3}))
	assert.Equal(t, "{\n  \"total\": 3\n}\n", buf.String())
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	tw := NewTabWriter(&buf)
	_, _ = tw.Write([]byte("ID\tSTATUS\nlobby-1\t" + OrDash("") + "\n"))
	require.NoError(t, tw.Flush())
	assert.Equal(t, "ID       STATUS\nlobby-1  -\n", buf.String())
}
