// Package provenance captures the build date, source revision and author
// embedded in every bundle banner. Capture happens once, when the build plan
// is resolved, never per rebuild.
package provenance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/toastate/homeservice/internal/tlogger"
	"github.com/toastate/homeservice/pkg/plan"
)

// ErrProvenance indicates source control metadata could not be read
var ErrProvenance = errors.New("provenance unavailable")

// Info is the captured provenance
type Info = plan.Provenance

type Provider interface {
	Provenance(ctx context.Context) (Info, error)
}

// Git reads the short HEAD revision and the configured user name of the
// repository at Dir. It fails rather than returning blank values.
type Git struct {
	Dir string
	Now func() time.Time
}

func NewGit(dir string) *Git {
	return &Git{Dir: dir, Now: time.Now}
}

func (g *Git) Provenance(ctx context.Context) (Info, error) {
	commit, err := g.run(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return Info{}, err
	}
	author, err := g.run(ctx, "config", "user.name")
	if err != nil {
		return Info{}, err
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	tlogger.Debug("msg", "Provenance captured", "commit", commit, "author", author)
	return Info{BuildDate: now(), Commit: commit, Author: author}, nil
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: git %s: %v: %s", ErrProvenance, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", fmt.Errorf("%w: git %s returned nothing", ErrProvenance, strings.Join(args, " "))
	}
	return out, nil
}

// Static returns fixed values, with BuildDate defaulting to the call time
type Static struct {
	Info Info
}

func (s Static) Provenance(ctx context.Context) (Info, error) {
	info := s.Info
	if info.BuildDate.IsZero() {
		info.BuildDate = time.Now()
	}
	return info, nil
}

// Override replaces the commit and/or author of another provider. When both
// are set the wrapped provider is not called.
type Override struct {
	Provider Provider
	Commit   string
	Author   string
}

func (o Override) Provenance(ctx context.Context) (Info, error) {
	if o.Commit != "" && o.Author != "" {
		return Static{Info: Info{Commit: o.Commit, Author: o.Author}}.Provenance(ctx)
	}

	info, err := o.Provider.Provenance(ctx)
	if err != nil {
		return Info{}, err
	}
	if o.Commit != "" {
		info.Commit = o.Commit
	}
	if o.Author != "" {
		info.Author = o.Author
	}
	return info, nil
}
