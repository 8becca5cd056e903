package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// DefaultConfigFile is read from the working directory when no path is given
const DefaultConfigFile = "homeservice.json"

// SiteName is appended to every page title
const SiteName = "우리동네 홈서비스"

var Config = DefaultConfiguration()

// DefaultConfiguration returns a fresh copy of the project defaults
func DefaultConfiguration() *Configuration {
	return &Configuration{
		OutputDir:   "dist",
		TemplateDir: "src/template",
		PagesFile:   "src/template/pages.yaml",
		SourceDir:   "src",
		SiteName:    SiteName,
		Favicon:     "favicon.ico",
		EnvFile:     ".env",
		Entries: []Entry{
			{Name: "main", Path: "./src/js/app.js"},
			{Name: "date_set", Path: "./src/js/date_set.js"},
			{Name: "order", Path: "./src/js/order.js"},
			{Name: "soldout", Path: "./src/js/soldout.js"},
			{Name: "my", Path: "./src/js/my.js"},
			{Name: "list_detail", Path: "./src/js/list_detail.js"},
			{Name: "notice", Path: "./src/js/notice.js"},
			{Name: "notice_detail", Path: "./src/js/notice_detail.js"},
			{Name: "move_set", Path: "./src/js/move_set.js"},
			{Name: "schedule", Path: "./src/js/schedule.js"},
		},
		IndexChunk:  "main",
		InlineLimit: 20000,
		Description: "description goes here",
		Defines: []Define{
			{Name: "TWO", Value: json.Number("2")},
			{Name: "THREE", Value: "1+2"},
		},
		CopyPatterns: []CopyPattern{
			{From: "src/assets", To: "assets"},
		},
		ServeConfig: ServeConfiguration{
			ContentBase: "dist",
			PublicPath:  "/",
			Host:        "localhost",
			Port:        8081,
			Hot:         true,
			APIPrefix:   "/api",
			MocksDir:    "mocks/api",
			Overlay:     true,
		},
	}
}

type Configuration struct {
	OutputDir   string `json:"output_directory,omitempty"`
	SourceDir   string `json:"source_directory,omitempty"`
	TemplateDir string `json:"template_directory,omitempty"`
	PagesFile   string `json:"pages_file,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Favicon     string `json:"favicon,omitempty"`
	EnvFile     string `json:"env_file,omitempty"`
	Description string `json:"description,omitempty"`

	// Author and Commit override the values read from git when set
	Author string `json:"author,omitempty"`
	Commit string `json:"commit,omitempty"`

	Entries     []Entry `json:"entries,omitempty"`
	IndexChunk  string  `json:"index_chunk,omitempty"`
	InlineLimit int64   `json:"inline_limit,omitempty"`

	// Rules replaces the default rule set when not empty
	Rules        []Rule        `json:"rules,omitempty"`
	Defines      []Define      `json:"defines,omitempty"`
	CopyPatterns []CopyPattern `json:"copy,omitempty"`

	ServeConfig ServeConfiguration `json:"serve_config,omitempty"`
}

type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type Rule struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
	Processors []string `json:"processors"`
}

// Define value is either a json.Number or a string
type Define struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

type CopyPattern struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type ServeConfiguration struct {
	ContentBase string `json:"content_base,omitempty"`
	PublicPath  string `json:"public_path,omitempty"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
	Hot         bool   `json:"hot"`
	APIPrefix   string `json:"api_prefix,omitempty"`
	MocksDir    string `json:"mocks_directory,omitempty"`
	Redirect404 string `json:"redirect_404,omitempty"`
	Overlay     bool   `json:"overlay"`
}

// Init decodes configpath over the defaults into Config. A missing file is not an error.
func Init(configpath string) error {
	c, err := Load(configpath)
	if err != nil {
		return err
	}
	Config = c
	return nil
}

// Load returns the defaults overridden by configpath
func Load(configpath string) (*Configuration, error) {
	if configpath == "" {
		configpath = DefaultConfigFile
	}

	c := DefaultConfiguration()

	_, err := os.Stat(configpath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("could not access configuration file %s: %v", configpath, err)
		}

		return c, nil
	}

	data, err := os.ReadFile(configpath)
	if err != nil {
		return nil, err
	}

	// lists set by the file replace the default lists, decoding over them
	// would fill missing fields from the default element at the same index
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("could not decode configuration file %s: %w", configpath, err)
	}
	if _, ok := keys["entries"]; ok {
		c.Entries = nil
	}
	if _, ok := keys["rules"]; ok {
		c.Rules = nil
	}
	if _, ok := keys["defines"]; ok {
		c.Defines = nil
	}
	if _, ok := keys["copy"]; ok {
		c.CopyPatterns = nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	err = dec.Decode(c)
	if err != nil {
		return nil, fmt.Errorf("could not decode configuration file %s: %w", configpath, err)
	}

	return c, nil
}
