package plan

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Processor names, listed in a rule the way webpack lists loaders: the last one
// runs first on the source file.
const (
	ProcessorStyle   = "style"   // fold CSS into the chunk's JS
	ProcessorExtract = "extract" // emit CSS as [name].css
	ProcessorCSS     = "css"     // resolve @import and url()
	ProcessorSass    = "sass"    // compile SCSS to CSS
	ProcessorURL     = "url"     // inline below the limit, emit a file above
	ProcessorFile    = "file"    // always emit a file
)

// AssetName is the output name template for emitted images
const AssetName = "assets/[name].[ext]?[hash]"

var knownProcessors = map[string]struct{}{
	ProcessorStyle:   {},
	ProcessorExtract: {},
	ProcessorCSS:     {},
	ProcessorSass:    {},
	ProcessorURL:     {},
	ProcessorFile:    {},
}

// RuleKind tells the builder which pipeline executes a rule
type RuleKind int

const (
	RuleStyle RuleKind = iota
	RuleAsset
)

type Rule struct {
	Name       string
	Extensions []string
	Processors []string

	// Limit is the inline threshold in bytes for the url processor
	Limit int64
	// AssetName is the emitted file template for url/file processors
	AssetName string

	test *regexp.Regexp
}

// NewRule builds a rule matching the given extensions (with or without the dot)
func NewRule(name string, extensions []string, processors ...string) *Rule {
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		exts = append(exts, strings.ToLower(strings.TrimPrefix(e, ".")))
	}
	r := &Rule{
		Name:       name,
		Extensions: exts,
		Processors: processors,
		AssetName:  AssetName,
	}
	quoted := make([]string, len(exts))
	for i, e := range exts {
		quoted[i] = regexp.QuoteMeta(e)
	}
	r.test = regexp.MustCompile(`(?i)\.(` + strings.Join(quoted, "|") + `)$`)
	return r
}

// Test is the file pattern, usable as an esbuild plugin filter
func (r *Rule) Test() string {
	return r.test.String()
}

func (r *Rule) Match(path string) bool {
	return r.test.MatchString(path)
}

func (r *Rule) Has(processor string) bool {
	for _, p := range r.Processors {
		if p == processor {
			return true
		}
	}
	return false
}

// Kind reports which pipeline the processors belong to
func (r *Rule) Kind() RuleKind {
	if r.Has(ProcessorURL) || r.Has(ProcessorFile) {
		return RuleAsset
	}
	return RuleStyle
}

// Extracts reports whether the style chain writes standalone stylesheets
func (r *Rule) Extracts() bool {
	return r.Has(ProcessorExtract)
}

func (r *Rule) validate() error {
	if len(r.Extensions) == 0 {
		return fmt.Errorf("%w: rule %q matches no extension", ErrInvalidChain, r.Name)
	}
	if len(r.Processors) == 0 {
		return fmt.Errorf("%w: rule %q has no processor", ErrInvalidChain, r.Name)
	}
	for _, p := range r.Processors {
		if _, ok := knownProcessors[p]; !ok {
			return fmt.Errorf("%w: %q in rule %q", ErrUnknownProcessor, p, r.Name)
		}
	}

	if r.Kind() == RuleAsset {
		if len(r.Processors) != 1 {
			return fmt.Errorf("%w: rule %q mixes asset and style processors", ErrInvalidChain, r.Name)
		}
		if r.Has(ProcessorURL) && r.Limit <= 0 {
			return fmt.Errorf("%w: rule %q needs a positive inline limit", ErrInvalidChain, r.Name)
		}
		return nil
	}

	if r.Has(ProcessorStyle) == r.Has(ProcessorExtract) {
		return fmt.Errorf("%w: rule %q needs exactly one of style or extract", ErrInvalidChain, r.Name)
	}
	head := r.Processors[0]
	if head != ProcessorStyle && head != ProcessorExtract {
		return fmt.Errorf("%w: rule %q must start with style or extract", ErrInvalidChain, r.Name)
	}
	if !r.Has(ProcessorCSS) {
		return fmt.Errorf("%w: rule %q has no css processor", ErrInvalidChain, r.Name)
	}
	return nil
}

// RuleFor returns the rule handling path. When several rules match, the last
// declared one wins; Validate rejects such plans so this only matters for
// plans built by hand.
func (p *Plan) RuleFor(path string) (*Rule, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return nil, false
	}
	for i := len(p.Rules) - 1; i >= 0; i-- {
		if p.Rules[i].Match(path) {
			return p.Rules[i], true
		}
	}
	return nil, false
}

func validateRules(rules []*Rule) error {
	owner := make(map[string]string)
	styles := 0
	for _, r := range rules {
		if err := r.validate(); err != nil {
			return err
		}
		if r.Kind() == RuleStyle {
			styles++
			if styles > 1 {
				return fmt.Errorf("%w: only one style rule is supported, %q is the second", ErrInvalidChain, r.Name)
			}
		}
		for _, e := range r.Extensions {
			if prev, ok := owner[e]; ok {
				return fmt.Errorf("%w: .%s is matched by %q and %q", ErrOverlappingRules, e, prev, r.Name)
			}
			owner[e] = r.Name
		}
	}
	return nil
}
