package builder

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bep/golibsass/libsass"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/toastate/homeservice/internal/tlogger"
	"github.com/toastate/homeservice/pkg/plan"
)

// sassPlugin compiles the style rule's .scss/.sass files with libsass and hands
// the CSS to esbuild's css loader, which resolves @import and url()
func sassPlugin(rule *plan.Rule) (api.Plugin, bool) {
	if !rule.Has(plan.ProcessorSass) {
		return api.Plugin{}, false
	}

	var exts []string
	for _, e := range rule.Extensions {
		if e == "scss" || e == "sass" {
			exts = append(exts, e)
		}
	}
	if len(exts) == 0 {
		return api.Plugin{}, false
	}
	filter := `(?i)\.(` + strings.Join(exts, "|") + `)$`

	return api.Plugin{
		Name: "homeservice-sass",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: filter, Namespace: "file"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				css, err := compileSass(args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				return api.OnLoadResult{
					Contents:   &css,
					Loader:     api.LoaderCSS,
					ResolveDir: filepath.Dir(args.Path),
				}, nil
			})
		},
	}, true
}

var sassSyntaxRegexp = regexp.MustCompile(`(?i)\.sass$`)

func compileSass(path string) (string, error) {
	tlogger.Debug("builder", "css", "msg", "processing", "file", path)

	src, err := os.ReadFile(path)
	if err != nil {
		tlogger.Error("builder", "css", "msg", "file error", "file", path, "err", err)
		return "", err
	}

	transpiler, err := libsass.New(libsass.Options{
		IncludePaths: []string{filepath.Dir(path)},
		OutputStyle:  libsass.ExpandedStyle,
		SassSyntax:   sassSyntaxRegexp.MatchString(path),
	})
	if err != nil {
		return "", err
	}

	res, err := transpiler.Execute(string(replaceWindowsCarriageReturn(src)))
	if err != nil {
		tlogger.Error("builder", "css", "msg", "sass", "file", path, "err", err)
		return "", err
	}
	return res.CSS, nil
}
