package builder

import (
	"encoding/base64"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/toastate/homeservice/internal/tlogger"
	"github.com/toastate/homeservice/pkg/plan"
)

const assetNamespace = "homeservice-asset"

// assetEmitter implements the url and file processors. A referenced image is
// either inlined as a base64 data URI (url processor, strictly below the rule
// limit) or written under the build directory and referenced with a content
// hash query string.
type assetEmitter struct {
	buildDir string

	mu    sync.Mutex
	refs  map[string]string
	files map[string]struct{}
}

func newAssetEmitter(buildDir string) *assetEmitter {
	return &assetEmitter{
		buildDir: buildDir,
		refs:     make(map[string]string),
		files:    make(map[string]struct{}),
	}
}

func (a *assetEmitter) plugin(rule *plan.Rule) api.Plugin {
	return api.Plugin{
		Name: "homeservice-" + rule.Name,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: rule.Test()}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if isRemote(args.Path) || (args.Namespace != "file" && args.Namespace != "") {
					return api.OnResolveResult{}, nil
				}

				src := args.Path
				if !filepath.IsAbs(src) {
					src = filepath.Join(args.ResolveDir, src)
				}

				ref, err := a.reference(rule, src)
				if err != nil {
					return api.OnResolveResult{}, err
				}

				if args.Kind == api.ResolveCSSURLToken {
					return api.OnResolveResult{Path: ref, External: true}, nil
				}
				return api.OnResolveResult{Path: src, Namespace: assetNamespace, PluginData: ref}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: assetNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				ref, _ := args.PluginData.(string)
				contents := "export default " + jsString(ref) + ";\n"
				return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
			})
		},
	}
}

func isRemote(p string) bool {
	return strings.HasPrefix(p, "data:") || strings.Contains(p, "://") || strings.HasPrefix(p, "//")
}

// reference returns the URL a bundle uses for src, emitting the file if needed
func (a *assetEmitter) reference(rule *plan.Rule, src string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := rule.Name + "\x00" + src
	if ref, ok := a.refs[key]; ok {
		return ref, nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		tlogger.Error("builder", "assets", "msg", "file error", "file", src, "err", err)
		return "", err
	}

	var ref string
	if rule.Has(plan.ProcessorURL) && int64(len(data)) < rule.Limit {
		ref = dataURI(src, data)
		tlogger.Debug("builder", "assets", "msg", "inlined", "file", src, "bytes", len(data))
	} else {
		ref, err = a.emit(rule, src, data)
		if err != nil {
			return "", err
		}
	}

	a.refs[key] = ref
	return ref, nil
}

func (a *assetEmitter) emit(rule *plan.Rule, src string, data []byte) (string, error) {
	ext := strings.TrimPrefix(filepath.Ext(src), ".")
	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))

	ref := strings.NewReplacer(
		"[name]", name,
		"[ext]", ext,
		"[hash]", contentHash(data),
	).Replace(rule.AssetName)

	file := ref
	if i := strings.IndexByte(file, '?'); i >= 0 {
		file = file[:i]
	}

	dst := filepath.Join(a.buildDir, filepath.FromSlash(file))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		tlogger.Error("builder", "assets", "msg", "output file creation", "file", file, "err", err)
		return "", err
	}
	a.files[file] = struct{}{}

	tlogger.Debug("builder", "assets", "msg", "emitted", "file", file, "bytes", len(data))
	return ref, nil
}

func (a *assetEmitter) emitted() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]string, 0, len(a.files))
	for f := range a.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func dataURI(path string, data []byte) string {
	ctype := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	if i := strings.IndexByte(ctype, ';'); i >= 0 {
		ctype = ctype[:i]
	}
	return "data:" + ctype + ";base64," + base64.StdEncoding.EncodeToString(data)
}
