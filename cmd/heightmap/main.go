// Command heightmap renders one chunk's height map to a 16-bit TIFF and
// prints the mesh size at every detail level.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"

	"landmass/internal/config"
	"landmass/internal/meshing"
	"landmass/internal/preview"
	"landmass/internal/world"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to landmass.yaml (built-in defaults when empty)")
		out        = flag.String("out", "heightmap.tif", "output TIFF path")
		cx         = flag.Int("cx", 0, "chunk x coordinate")
		cy         = flag.Int("cy", 0, "chunk y coordinate")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[heightmap] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	opts, err := cfg.WorldOptions(nil, logger)
	if err != nil {
		logger.Fatalf("world options: %v", err)
	}
	gen := world.NewGenerator(opts.Generator)
	coord := world.ChunkCoord{X: *cx, Y: *cy}
	h := gen.HeightMap(coord)

	f, err := os.Create(*out)
	if err != nil {
		logger.Fatalf("create %s: %v", *out, err)
	}
	if err := preview.WriteTIFF(f, preview.Gray16(h)); err != nil {
		f.Close()
		logger.Fatalf("write %s: %v", *out, err)
	}
	if err := f.Close(); err != nil {
		logger.Fatalf("close %s: %v", *out, err)
	}
	size := int64(0)
	if fi, err := os.Stat(*out); err == nil {
		size = fi.Size()
	}
	logger.Printf("Chunk %v: %dx%d samples, range [%.3f, %.3f], wrote %s (%s)",
		coord, h.Width, h.Height, h.Min(), h.Max(), *out, humanize.Bytes(uint64(size)))

	curve := cfg.HeightCurve()
	for level := 0; level <= meshing.MaxDetailLevel; level++ {
		m := meshing.BuildMesh(h, cfg.Mesh.HeightScale, curve, level)
		marker := ""
		if level == cfg.Mesh.DetailLevel {
			marker = " (configured)"
		}
		fmt.Printf("LOD %d  stride %d  %8s vertices  %8s triangles%s\n",
			level, meshing.Stride(level),
			humanize.Comma(int64(m.VertexCount())), humanize.Comma(int64(m.TriangleCount())), marker)
	}
}
