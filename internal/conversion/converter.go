package conversion

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
)

// RasterizerCommand is the external SVG rasterizer.
var RasterizerCommand = "rsvg-convert"

// SVGToPNG renders the SVG at inputPath as a square PNG of size pixels in
// outDir and returns the path to the new file.
func SVGToPNG(ctx context.Context, inputPath, outDir string, size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("invalid icon size %d", size)
	}
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	outputPath := filepath.Join(outDir, fmt.Sprintf("%s-%d.png", base[:len(base)-len(ext)], size))

	s := strconv.Itoa(size)
	cmd := exec.CommandContext(ctx, RasterizerCommand, "-w", s, "-h", s, "-a", "-f", "png", "-o", outputPath, inputPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%s failed: %v: %s", RasterizerCommand, err, out)
	}
	return outputPath, nil
}
