package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/toastate/homeservice/internal/tlogger"
)

type metafile struct {
	Outputs map[string]metafileOutput `json:"outputs"`
}

type metafileOutput struct {
	EntryPoint string `json:"entryPoint"`
	CSSBundle  string `json:"cssBundle"`
}

type bundleResult struct {
	hash   string
	chunks map[string]ChunkOutput
	assets []string
}

func (b *Builder) bundleOptions(assets *assetEmitter) (api.BuildOptions, error) {
	root, err := filepath.Abs(b.rootFolder)
	if err != nil {
		return api.BuildOptions{}, err
	}

	entries := make([]api.EntryPoint, 0, len(b.plan.Entries))
	for _, e := range b.plan.Entries {
		entries = append(entries, api.EntryPoint{InputPath: e.Path, OutputPath: e.Name})
	}

	define, inject, err := b.defines()
	if err != nil {
		return api.BuildOptions{}, err
	}

	prod := b.plan.Profile.IsProduction()
	banner := b.plan.Banner.Comment()

	opts := api.BuildOptions{
		AbsWorkingDir:       root,
		EntryPointsAdvanced: entries,
		Outdir:              b.buildDir,
		Bundle:              true,
		Write:               false,
		Metafile:            true,
		Format:              api.FormatIIFE,
		Platform:            api.PlatformBrowser,
		MinifyWhitespace:    prod,
		MinifyIdentifiers:   prod,
		MinifySyntax:        prod,
		Banner:              map[string]string{"js": banner, "css": banner},
		Define:              define,
		Inject:              inject,
		Loader:              map[string]api.Loader{},
		LogLevel:            api.LogLevelSilent,
	}

	if style := b.plan.StyleRule(); style != nil {
		for _, ext := range style.Extensions {
			if ext != "scss" && ext != "sass" && ext != "css" {
				opts.Loader["."+ext] = api.LoaderCSS
			}
		}
		if plugin, ok := sassPlugin(style); ok {
			opts.Plugins = append(opts.Plugins, plugin)
		}
	}
	for _, rule := range b.plan.AssetRules() {
		opts.Plugins = append(opts.Plugins, assets.plugin(rule))
	}

	return opts, nil
}

func (b *Builder) bundle(ctx context.Context) (*bundleResult, error) {
	assets := newAssetEmitter(b.buildDir)

	opts, err := b.bundleOptions(assets)
	if err != nil {
		return nil, err
	}

	tlogger.Debug("builder", "js", "msg", "bundling", "entries", len(opts.EntryPointsAdvanced))

	result := api.Build(opts)
	for _, f := range opts.Inject {
		os.Remove(f)
	}
	if len(result.Errors) > 0 {
		for _, msg := range api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage}) {
			tlogger.Error("builder", "js", "msg", "Build error", "err", strings.TrimSpace(msg))
		}
		return nil, fmt.Errorf("%w: %d error(s), first: %s", ErrBundle, len(result.Errors), result.Errors[0].Text)
	}
	for _, msg := range result.Warnings {
		tlogger.Warn("builder", "js", "msg", "Build warning", "warn", msg.Text)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var meta metafile
	if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(b.rootFolder)
	if err != nil {
		return nil, err
	}
	outputs := make(map[string][]byte, len(result.OutputFiles))
	for _, f := range result.OutputFiles {
		rel, err := filepath.Rel(root, f.Path)
		if err != nil {
			return nil, err
		}
		outputs[filepath.ToSlash(rel)] = f.Contents
	}

	inline := true
	if style := b.plan.StyleRule(); style != nil && style.Extracts() {
		inline = false
	}

	res := &bundleResult{chunks: make(map[string]ChunkOutput, len(b.plan.Entries))}
	for _, e := range b.plan.Entries {
		jsKey, err := b.outputKey(root, e.Name+".js")
		if err != nil {
			return nil, err
		}
		if _, ok := outputs[jsKey]; !ok {
			return nil, fmt.Errorf("%w: no output for chunk %q", ErrBundle, e.Name)
		}

		chunk := ChunkOutput{JS: e.Name + ".js"}
		cssKey := meta.Outputs[jsKey].CSSBundle
		if cssKey != "" {
			if inline {
				outputs[jsKey] = append(outputs[jsKey], styleInjector(e.Name, outputs[cssKey])...)
				delete(outputs, cssKey)
			} else {
				chunk.CSS = e.Name + ".css"
			}
		}
		res.chunks[e.Name] = chunk
	}

	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := xxhash.New()
	for _, k := range keys {
		h.WriteString(k)
		h.Write(outputs[k])

		p := filepath.Join(root, filepath.FromSlash(k))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(p, outputs[k], 0644); err != nil {
			tlogger.Error("builder", "js", "msg", "output file creation", "file", k, "err", err)
			return nil, err
		}
		tlogger.Debug("builder", "js", "msg", "Built file", "file", k, "size", humanize.Bytes(uint64(len(outputs[k]))))
	}
	res.hash = fmt.Sprintf("%016x", h.Sum64())
	res.assets = assets.emitted()

	return res, nil
}

// outputKey is the metafile key of a file in the build directory
func (b *Builder) outputKey(root, name string) (string, error) {
	out, err := filepath.Abs(b.buildDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, filepath.Join(out, name))
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// definesFile holds the defines esbuild can't substitute directly, it lives
// in the build dir only while bundling
const definesFile = ".homeservice-defines.js"

var identifierChain = regexp.MustCompile(`^[A-Za-z_$][\w$]*(\.[A-Za-z_$][\w$]*)*$`)

// defines returns the substitutions handed to esbuild as is, and the files to
// inject for expressions which esbuild only accepts as module exports
func (b *Builder) defines() (map[string]string, []string, error) {
	define := map[string]string{
		"process.env.NODE_ENV": jsString(string(b.plan.Profile)),
	}

	env, err := loadEnvFile(b.path(b.plan.EnvFile))
	if err != nil {
		return nil, nil, err
	}
	for k, v := range env {
		define["process.env."+k] = jsString(v)
	}

	var exprs strings.Builder
	for _, d := range b.plan.Defines {
		if json.Valid([]byte(d.Code)) || identifierChain.MatchString(d.Code) {
			define[d.Name] = d.Code
			continue
		}
		if strings.Contains(d.Name, ".") {
			return nil, nil, fmt.Errorf("define %s: expression %q can only replace a plain identifier", d.Name, d.Code)
		}
		fmt.Fprintf(&exprs, "export var %s = (%s);\n", d.Name, d.Code)
	}
	if exprs.Len() == 0 {
		return define, nil, nil
	}

	p := filepath.Join(b.buildDir, definesFile)
	if err := os.MkdirAll(b.buildDir, 0755); err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(p, []byte(exprs.String()), 0644); err != nil {
		return nil, nil, err
	}
	return define, []string{p}, nil
}
