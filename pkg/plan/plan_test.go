package plan

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/toastate/homeservice/pkg/config"
)

var testProvenance = Provenance{
	BuildDate: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	Commit:    "abc1234",
	Author:    "tester",
}

func testPages() []Page {
	return []Page{
		{Name: "date_set", Title: "날짜 선택"},
		{Name: "order", Title: "주문"},
		{Name: "soldout", Title: "매진"},
		{Name: "my", Title: "마이페이지"},
		{Name: "list_detail", Title: "상세"},
		{Name: "notice", Title: "공지"},
		{Name: "notice_detail", Title: "공지 상세"},
		{Name: "move_set", Title: "이사"},
		{Name: "schedule", Title: "일정"},
	}
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		in      string
		want    Profile
		wantErr bool
	}{
		{in: "", want: Development},
		{in: "development", want: Development},
		{in: "Production", want: Production},
		{in: " production ", want: Production},
		{in: "staging", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProfile(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidProfile)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNewDefaultPlan(t *testing.T) {
	p, err := New(config.DefaultConfiguration(), Development, testPages(), testProvenance)
	require.NoError(t, err)

	require.Len(t, p.Entries, 10)
	require.Len(t, p.Directives, len(testPages())+1)

	for i, pg := range testPages() {
		d := p.Directives[i]
		require.Equal(t, pg.Name+".html", d.Filename)
		require.Equal(t, []string{pg.Name}, d.Chunks)
		require.True(t, strings.HasSuffix(d.Title, " | "+config.SiteName))
		require.Equal(t, "src/template/"+pg.Name+".html", d.Template)
		require.True(t, d.Hash)
		require.False(t, d.Minify)
		require.Len(t, d.Meta, 3)
	}

	index := p.Directives[len(p.Directives)-1]
	require.Equal(t, "index.html", index.Filename)
	require.Equal(t, config.SiteName, index.Title)
	require.Equal(t, []string{"main"}, index.Chunks)

	require.Equal(t, "localhost:8081", p.DevServer.Addr())
	require.Equal(t, "dist", p.DevServer.ContentBase)
}

func TestStyleChainFollowsProfile(t *testing.T) {
	dev, err := New(config.DefaultConfiguration(), Development, nil, testProvenance)
	require.NoError(t, err)
	require.Equal(t, []string{ProcessorStyle, ProcessorCSS, ProcessorSass}, dev.StyleRule().Processors)
	require.False(t, dev.StyleRule().Extracts())

	prod, err := New(config.DefaultConfiguration(), Production, nil, testProvenance)
	require.NoError(t, err)
	require.Equal(t, []string{ProcessorExtract, ProcessorCSS, ProcessorSass}, prod.StyleRule().Processors)
	require.True(t, prod.StyleRule().Extracts())
	require.True(t, prod.Directives[0].Minify)
}

func TestImageRule(t *testing.T) {
	p, err := New(config.DefaultConfiguration(), Development, nil, testProvenance)
	require.NoError(t, err)

	rules := p.AssetRules()
	require.Len(t, rules, 1)
	require.Equal(t, int64(20000), rules[0].Limit)
	require.Equal(t, "assets/[name].[ext]?[hash]", rules[0].AssetName)

	for _, name := range []string{"a.png", "b.JPG", "c.jpeg", "d.gif", "e.svg"} {
		r, ok := p.RuleFor(name)
		require.True(t, ok, name)
		require.Equal(t, "images", r.Name)
	}
	r, ok := p.RuleFor("style.scss")
	require.True(t, ok)
	require.Equal(t, "styles", r.Name)

	_, ok = p.RuleFor("app.js")
	require.False(t, ok)
}

func TestOverlappingRulesAreRejected(t *testing.T) {
	cfg := config.DefaultConfiguration()
	cfg.Rules = []config.Rule{
		{Name: "styles", Extensions: []string{"scss", "css"}, Processors: []string{"style", "css", "sass"}},
		{Name: "optimized", Extensions: []string{"png", "jpg"}, Processors: []string{"file"}},
		{Name: "inline", Extensions: []string{"png", "gif"}, Processors: []string{"url"}},
	}

	_, err := New(cfg, Development, nil, testProvenance)
	require.ErrorIs(t, err, ErrOverlappingRules)
	require.Contains(t, err.Error(), ".png")
}

func TestRuleForLastMatchWins(t *testing.T) {
	first := NewRule("first", []string{"png"}, ProcessorFile)
	second := NewRule("second", []string{".png"}, ProcessorURL)
	p := &Plan{Rules: []*Rule{first, second}}

	r, ok := p.RuleFor("logo.png")
	require.True(t, ok)
	require.Equal(t, "second", r.Name)
}

func TestInvalidChains(t *testing.T) {
	tests := []struct {
		name  string
		rules []config.Rule
		err   error
	}{
		{
			name:  "unknown processor",
			rules: []config.Rule{{Name: "img", Extensions: []string{"png"}, Processors: []string{"image-webpack"}}},
			err:   ErrUnknownProcessor,
		},
		{
			name:  "style and extract",
			rules: []config.Rule{{Name: "css", Extensions: []string{"css"}, Processors: []string{"style", "extract", "css"}}},
			err:   ErrInvalidChain,
		},
		{
			name:  "no css step",
			rules: []config.Rule{{Name: "css", Extensions: []string{"css"}, Processors: []string{"style", "sass"}}},
			err:   ErrInvalidChain,
		},
		{
			name:  "mixed asset chain",
			rules: []config.Rule{{Name: "img", Extensions: []string{"png"}, Processors: []string{"file", "url"}}},
			err:   ErrInvalidChain,
		},
		{
			name: "two style rules",
			rules: []config.Rule{
				{Name: "css", Extensions: []string{"css"}, Processors: []string{"style", "css"}},
				{Name: "scss", Extensions: []string{"scss"}, Processors: []string{"style", "css", "sass"}},
			},
			err: ErrInvalidChain,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfiguration()
			cfg.Rules = tt.rules
			_, err := New(cfg, Development, nil, testProvenance)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPageWithoutEntryIsRejected(t *testing.T) {
	pages := append(testPages(), Page{Name: "faq", Title: "FAQ"})
	_, err := New(config.DefaultConfiguration(), Development, pages, testProvenance)
	require.ErrorIs(t, err, ErrMissingChunk)
}

func TestDuplicateEntryIsRejected(t *testing.T) {
	cfg := config.DefaultConfiguration()
	cfg.Entries = append(cfg.Entries, config.Entry{Name: "order", Path: "./src/js/order2.js"})
	_, err := New(cfg, Development, nil, testProvenance)
	require.ErrorIs(t, err, ErrDuplicateChunk)
}

func TestPageClaimingIndexChunkIsRejected(t *testing.T) {
	cfg := config.DefaultConfiguration()
	cfg.IndexChunk = "order"
	_, err := New(cfg, Development, []Page{{Name: "order", Title: "주문"}}, testProvenance)
	require.ErrorIs(t, err, ErrDuplicateChunk)
}

func TestDefineStringsAreCode(t *testing.T) {
	p, err := New(config.DefaultConfiguration(), Development, nil, testProvenance)
	require.NoError(t, err)
	require.Equal(t, []Define{
		{Name: "TWO", Code: "2"},
		{Name: "THREE", Code: "1+2"},
	}, p.Defines)

	cfg := config.DefaultConfiguration()
	cfg.Defines = []config.Define{{Name: "GREETING", Value: `"안녕"`}, {Name: "ON", Value: true}}
	p, err = New(cfg, Development, nil, testProvenance)
	require.NoError(t, err)
	require.Equal(t, []Define{{Name: "GREETING", Code: `"안녕"`}, {Name: "ON", Code: "true"}}, p.Defines)

	cfg.Defines = []config.Define{{Name: "EMPTY", Value: " "}}
	_, err = New(cfg, Development, nil, testProvenance)
	require.Error(t, err)
}

func TestBannerComment(t *testing.T) {
	b := Banner{BuildDate: testProvenance.BuildDate, Commit: "abc1234", Author: "tester"}
	require.Equal(t, "/*!\n * Build Date: 2024-03-01 09:30:00\n * Commit Version: abc1234\n * Author: tester\n */", b.Comment())
}

func TestParsePages(t *testing.T) {
	pages, err := ParsePages([]byte("- name: order\n  title: 주문\n- name: my\n  title: 마이페이지\n"))
	require.NoError(t, err)
	require.Equal(t, []Page{{Name: "order", Title: "주문"}, {Name: "my", Title: "마이페이지"}}, pages)

	_, err = ParsePages([]byte("- name: order\n- name: order\n"))
	require.ErrorIs(t, err, ErrInvalidPages)

	_, err = ParsePages([]byte("- name: ../etc\n"))
	require.ErrorIs(t, err, ErrInvalidPages)

	_, err = ParsePages([]byte("- name: index\n"))
	require.ErrorIs(t, err, ErrInvalidPages)

	_, err = ParsePages([]byte("name: [unclosed"))
	require.ErrorIs(t, err, ErrInvalidPages)
}
