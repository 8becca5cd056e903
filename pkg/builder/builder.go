package builder

import (
	"context"

	"github.com/toastate/homeservice/internal/builder"
	"github.com/toastate/homeservice/pkg/plan"
)

type Result = builder.Result

type Builder interface {
	Build(ctx context.Context) (*Result, error)
	BuildDir() string
}

// NewBuilder returns a builder executing p, relative plan paths are resolved against rootFolder
func NewBuilder(rootFolder string, p *plan.Plan) Builder {
	return builder.NewBuilder(rootFolder, p)
}
