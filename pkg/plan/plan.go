// Package plan resolves the declarative build plan of the site: entry points,
// transformation rules, HTML directives, provenance banner, compile time
// constants and dev server settings, for one build profile.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/toastate/homeservice/internal/tlogger"
	"github.com/toastate/homeservice/pkg/config"
)

// Entry maps a chunk name to its source module
type Entry struct {
	Name string
	Path string
}

type Meta struct {
	HTTPEquiv string
	Name      string
	Content   string
}

type HTMLDirective struct {
	Template string
	Title    string
	Filename string
	Chunks   []string
	Favicon  string
	Hash     bool
	Minify   bool
	Meta     []Meta
}

type Banner struct {
	BuildDate time.Time
	Commit    string
	Author    string
}

// Comment renders the banner as a preserved block comment
func (b Banner) Comment() string {
	return "/*!\n * Build Date: " + b.BuildDate.Format("2006-01-02 15:04:05") +
		"\n * Commit Version: " + b.Commit +
		"\n * Author: " + b.Author + "\n */"
}

// Define is a compile time constant, Code is the javascript expression substituted in bundles
type Define struct {
	Name string
	Code string
}

type Copy struct {
	From string
	To   string
}

type DevServer struct {
	ContentBase string
	PublicPath  string
	Host        string
	Port        int
	Hot         bool
	APIPrefix   string
	MocksDir    string
	Redirect404 string
	Overlay     bool
}

// Addr is the listen address of the dev server
func (d DevServer) Addr() string {
	return d.Host + ":" + strconv.Itoa(d.Port)
}

type Plan struct {
	Profile   Profile
	OutputDir string
	SourceDir string
	EnvFile   string

	Entries    []Entry
	Rules      []*Rule
	Pages      []Page
	Directives []HTMLDirective
	Banner     Banner
	Defines    []Define
	Copies     []Copy
	DevServer  DevServer
}

// Provenance is what the plan needs from a provenance provider
type Provenance struct {
	BuildDate time.Time
	Commit    string
	Author    string
}

var defaultMeta = []Meta{
	{HTTPEquiv: "X-UA-Compatible", Content: "IE=edge"},
	{Name: "viewport", Content: "width=device-width,initial-scale=1.0,minimum-scale=1.0,maximum-scale=1.0,user-scalable=no"},
}

// New resolves the plan for profile. It never touches source files: a missing
// entry or template fails later, at build time.
func New(cfg *config.Configuration, profile Profile, pages []Page, prov Provenance) (*Plan, error) {
	p := &Plan{
		Profile:   profile,
		OutputDir: cfg.OutputDir,
		SourceDir: cfg.SourceDir,
		EnvFile:   cfg.EnvFile,
		Pages:     pages,
		Banner: Banner{
			BuildDate: prov.BuildDate,
			Commit:    prov.Commit,
			Author:    prov.Author,
		},
		DevServer: DevServer{
			ContentBase: cfg.ServeConfig.ContentBase,
			PublicPath:  cfg.ServeConfig.PublicPath,
			Host:        cfg.ServeConfig.Host,
			Port:        cfg.ServeConfig.Port,
			Hot:         cfg.ServeConfig.Hot,
			APIPrefix:   cfg.ServeConfig.APIPrefix,
			MocksDir:    cfg.ServeConfig.MocksDir,
			Redirect404: cfg.ServeConfig.Redirect404,
			Overlay:     cfg.ServeConfig.Overlay,
		},
	}
	if p.DevServer.ContentBase == "" {
		p.DevServer.ContentBase = p.OutputDir
	}
	if p.DevServer.PublicPath == "" {
		p.DevServer.PublicPath = "/"
	}

	for _, e := range cfg.Entries {
		p.Entries = append(p.Entries, Entry{Name: e.Name, Path: e.Path})
	}

	p.Rules = selectRules(cfg, profile)

	meta := append(append([]Meta{}, defaultMeta...), Meta{Name: "description", Content: cfg.Description})
	for _, pg := range pages {
		p.Directives = append(p.Directives, HTMLDirective{
			Template: filepath.Join(cfg.TemplateDir, pg.Name+".html"),
			Title:    pg.Title + " | " + cfg.SiteName,
			Filename: pg.Name + ".html",
			Chunks:   []string{pg.Name},
			Favicon:  cfg.Favicon,
			Hash:     true,
			Minify:   profile.IsProduction(),
			Meta:     meta,
		})
	}
	p.Directives = append(p.Directives, HTMLDirective{
		Template: filepath.Join(cfg.TemplateDir, "index.html"),
		Title:    cfg.SiteName,
		Filename: "index.html",
		Chunks:   []string{cfg.IndexChunk},
		Favicon:  cfg.Favicon,
		Hash:     true,
		Minify:   profile.IsProduction(),
		Meta:     meta,
	})

	for _, d := range cfg.Defines {
		code, err := defineCode(d.Value)
		if err != nil {
			return nil, fmt.Errorf("define %s: %w", d.Name, err)
		}
		p.Defines = append(p.Defines, Define{Name: d.Name, Code: code})
	}

	for _, c := range cfg.CopyPatterns {
		p.Copies = append(p.Copies, Copy{From: c.From, To: c.To})
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func selectRules(cfg *config.Configuration, profile Profile) []*Rule {
	if len(cfg.Rules) > 0 {
		rules := make([]*Rule, 0, len(cfg.Rules))
		for _, r := range cfg.Rules {
			rule := NewRule(r.Name, r.Extensions, r.Processors...)
			rule.Limit = cfg.InlineLimit
			rules = append(rules, rule)
		}
		return rules
	}

	head := ProcessorStyle
	if profile.IsProduction() {
		head = ProcessorExtract
	}
	styles := NewRule("styles", []string{"scss", "css"}, head, ProcessorCSS, ProcessorSass)
	images := NewRule("images", []string{"png", "jpg", "jpeg", "gif", "svg"}, ProcessorURL)
	images.Limit = cfg.InlineLimit
	return []*Rule{styles, images}
}

func defineCode(v interface{}) (string, error) {
	switch val := v.(type) {
	case json.Number:
		if _, err := val.Float64(); err != nil {
			return "", err
		}
		return val.String(), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case string:
		// strings are code, a string literal needs its own quotes
		if strings.TrimSpace(val) == "" {
			return "", errors.New("empty define code")
		}
		return val, nil
	}
	return "", fmt.Errorf("unsupported define value %T", v)
}

// Validate checks the invariants between entries, rules and directives
func (p *Plan) Validate() error {
	if _, err := ParseProfile(string(p.Profile)); err != nil {
		return err
	}

	entries := make(map[string]struct{}, len(p.Entries))
	for _, e := range p.Entries {
		if _, ok := entries[e.Name]; ok {
			return fmt.Errorf("%w: entry %q declared twice", ErrDuplicateChunk, e.Name)
		}
		entries[e.Name] = struct{}{}
	}

	if err := validateRules(p.Rules); err != nil {
		return err
	}

	claimed := make(map[string]string, len(p.Directives))
	for _, d := range p.Directives {
		for _, c := range d.Chunks {
			if _, ok := entries[c]; !ok {
				return fmt.Errorf("%w: %s references %q", ErrMissingChunk, d.Filename, c)
			}
			if prev, ok := claimed[c]; ok {
				return fmt.Errorf("%w: %q used by %s and %s", ErrDuplicateChunk, c, prev, d.Filename)
			}
			claimed[c] = d.Filename
		}
	}

	for _, e := range p.Entries {
		if _, ok := claimed[e.Name]; !ok {
			tlogger.Warn("msg", "Entry not referenced by any page", "chunk", e.Name)
		}
	}
	return nil
}

// StyleRule returns the style rule, nil when the plan has none
func (p *Plan) StyleRule() *Rule {
	for _, r := range p.Rules {
		if r.Kind() == RuleStyle {
			return r
		}
	}
	return nil
}

// AssetRules returns the url/file rules in declaration order
func (p *Plan) AssetRules() []*Rule {
	var out []*Rule
	for _, r := range p.Rules {
		if r.Kind() == RuleAsset {
			out = append(out, r)
		}
	}
	return out
}
