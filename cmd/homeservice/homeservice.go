package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/davecgh/go-spew/spew"
	"github.com/ryanuber/columnize"
	"github.com/toastate/homeservice/internal/provenance"
	"github.com/toastate/homeservice/internal/tlogger"
	"github.com/toastate/homeservice/pkg/builder"
	"github.com/toastate/homeservice/pkg/config"
	"github.com/toastate/homeservice/pkg/plan"
	"github.com/toastate/homeservice/pkg/server"
)

var CLI struct {
	Build CommandBuild `cmd:"" aliases:"b" help:"Cleans the output directory and builds the site."`
	Serve CommandServe `cmd:"" aliases:"s" help:"Run a live dev server with mocked API."`
	Plan  CommandPlan  `cmd:"" help:"Print the resolved build plan."`

	ConfigFile string `short:"c" help:"configuration file path (optional)"`
	Mode       string `short:"m" env:"NODE_ENV" help:"Build profile: development or production."`
	Root       string `default:"." help:"Project root, relative paths of the configuration are resolved against it." type:"existingdir"`
}

type CommandBuild struct {
	Verbose int `short:"v" help:"Print verbose output." type:"counter"`
}

type CommandServe struct {
	Build bool   `negatable:"" default:"true" help:"Build and watch sources before serving."`
	Host  string `help:"Listener host"`
	Port  int    `short:"p" help:"Listener port"`

	Verbose int `short:"v" help:"Print verbose output." type:"counter"`
}

type CommandPlan struct {
	Dump bool `short:"d" help:"Dump the whole plan instead of the page table."`

	Verbose int `short:"v" help:"Print verbose output." type:"counter"`
}

func main() {
	kctx := kong.Parse(&CLI, kong.UsageOnError())

	tlogger.FatalIf(config.Init(CLI.ConfigFile))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	err := kctx.Run()
	if err != nil {
		tlogger.Error("err", err)
		stop()
		os.Exit(1)
	}
}

// resolvePlan reads the page manifest and the provenance, then resolves the plan
func resolvePlan(ctx context.Context) (*plan.Plan, error) {
	profile, err := plan.ParseProfile(CLI.Mode)
	if err != nil {
		return nil, err
	}

	cfg := config.Config
	pages, err := plan.LoadPages(rootPath(cfg.PagesFile))
	if err != nil {
		return nil, err
	}

	provider := provenance.Override{
		Provider: provenance.NewGit(CLI.Root),
		Commit:   cfg.Commit,
		Author:   cfg.Author,
	}
	info, err := provider.Provenance(ctx)
	if err != nil {
		return nil, err
	}

	return plan.New(cfg, profile, pages, info)
}

func rootPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(CLI.Root, p)
}

func (r *CommandBuild) Run(ctx context.Context) error {
	tlogger.ApplyLogLevel(tlogger.Verbosity(r.Verbose))

	p, err := resolvePlan(ctx)
	if err != nil {
		return err
	}

	_, err = builder.NewBuilder(CLI.Root, p).Build(ctx)
	return err
}

func (r *CommandServe) Run(ctx context.Context) error {
	tlogger.ApplyLogLevel(tlogger.Verbosity(r.Verbose))

	p, err := resolvePlan(ctx)
	if err != nil {
		return err
	}
	if r.Host != "" {
		p.DevServer.Host = r.Host
	}
	if r.Port > 0 {
		p.DevServer.Port = r.Port
	}

	return server.NewServer(CLI.Root, p).Start(ctx, r.Build)
}

func (r *CommandPlan) Run(ctx context.Context) error {
	tlogger.ApplyLogLevel(tlogger.Verbosity(r.Verbose))

	p, err := resolvePlan(ctx)
	if err != nil {
		return err
	}

	if r.Dump {
		dumper := spew.ConfigState{
			Indent:                  "  ",
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		}
		dumper.Fdump(os.Stdout, p)
		return nil
	}

	entries := make(map[string]string, len(p.Entries))
	for _, e := range p.Entries {
		entries[e.Name] = e.Path
	}

	output := []string{"FILE|TITLE|CHUNKS|SOURCES"}
	for _, d := range p.Directives {
		sources := make([]string, 0, len(d.Chunks))
		for _, c := range d.Chunks {
			sources = append(sources, entries[c])
		}
		output = append(output, strings.Join([]string{d.Filename, d.Title, strings.Join(d.Chunks, ","), strings.Join(sources, ",")}, "|"))
	}
	fmt.Println(columnize.SimpleFormat(output))

	fmt.Println()
	rules := []string{"RULE|EXTENSIONS|PROCESSORS"}
	for _, rule := range p.Rules {
		rules = append(rules, strings.Join([]string{rule.Name, strings.Join(rule.Extensions, ","), strings.Join(rule.Processors, " <- ")}, "|"))
	}
	fmt.Println(columnize.SimpleFormat(rules))
	fmt.Println()
	fmt.Println(p.Banner.Comment())
	return nil
}
