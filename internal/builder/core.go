package builder

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/toastate/homeservice/pkg/plan"
)

var (
	// ErrBundle indicates the bundler reported errors
	ErrBundle = errors.New("bundling failed")
	// ErrUnsafeOutput indicates an output directory that would wipe sources when cleaned
	ErrUnsafeOutput = errors.New("unsafe output directory")
)

// Builder executes a build plan. A Builder is reused across rebuilds by the
// dev server, Build calls are serialized.
type Builder struct {
	mu sync.Mutex

	rootFolder string
	buildDir   string
	plan       *plan.Plan
}

// ChunkOutput lists the files emitted for one entry, relative to the build directory
type ChunkOutput struct {
	JS  string
	CSS string
}

type Result struct {
	Hash     string
	Chunks   map[string]ChunkOutput
	Pages    []string
	Assets   []string
	Duration time.Duration
}

func NewBuilder(rootFolder string, p *plan.Plan) *Builder {
	if rootFolder == "" {
		rootFolder = "."
	}
	// esbuild reports output paths as absolute ones
	if abs, err := filepath.Abs(rootFolder); err == nil {
		rootFolder = abs
	}
	buildDir := p.OutputDir
	if !filepath.IsAbs(buildDir) {
		buildDir = filepath.Join(rootFolder, buildDir)
	}
	return &Builder{
		rootFolder: rootFolder,
		buildDir:   buildDir,
		plan:       p,
	}
}

func (b *Builder) BuildDir() string {
	return b.buildDir
}

func (b *Builder) Plan() *plan.Plan {
	return b.plan
}

// path resolves a plan path against the project root
func (b *Builder) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.rootFolder, p)
}
