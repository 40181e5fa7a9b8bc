package conversion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSVGToPNGRejectsBadSize(t *testing.T) {
	_, err := SVGToPNG(context.Background(), "icon.svg", t.TempDir(), 0)
	assert.Error(t, err)
}

func TestSVGToPNGUsesRasterizer(t *testing.T) {
	dir := t.TempDir()
	// A stand-in rasterizer that copies its input to the -o path.
	script := filepath.Join(dir, "fake-rsvg")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nwhile [ \"$1\" != \"-o\" ]; do shift; done\ncp \"$3\" \"$2\"\n"), 0o755))
	old := RasterizerCommand
	RasterizerCommand = script
	defer func() { RasterizerCommand = old }()

	svg := filepath.Join(dir, "stop.svg")
	require.NoError(t, os.WriteFile(svg, []byte("<svg/>"), 0o644))

	out, err := SVGToPNG(context.Background(), svg, dir, 64)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "stop-64.png"), out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))
}
