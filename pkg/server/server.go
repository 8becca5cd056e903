package server

import (
	"context"
	"net/http"

	"github.com/toastate/homeservice/internal/server"
	"github.com/toastate/homeservice/pkg/plan"
)

type Server interface {
	Start(ctx context.Context, withBuilder bool) error
	Handler() http.Handler
	TriggerReload()
}

// NewServer returns the dev server of p, rooted at rootDir
func NewServer(rootDir string, p *plan.Plan) Server {
	return server.NewServer(rootDir, p)
}
