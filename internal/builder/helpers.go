package builder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/cespare/xxhash/v2"
	"github.com/joho/godotenv"
	"github.com/toastate/homeservice/internal/helpers"
	"github.com/toastate/homeservice/internal/tlogger"
)

var windowCRregexp = regexp.MustCompile(`\r?\n`)

func replaceWindowsCarriageReturn(b []byte) []byte {
	return windowCRregexp.ReplaceAll(b, []byte("\n"))
}

func copyFile(src, dst string) (int64, error) {
	sourceFileStat, err := os.Stat(src)
	if err != nil {
		return 0, err
	}

	if !sourceFileStat.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", src)
	}

	source, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer destination.Close()
	return io.Copy(destination, source)
}

func contentHash(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}

// jsString encodes s as a JS string literal
func jsString(s string) string {
	b, _ := helpers.MarshalJson(s)
	return string(bytes.TrimSpace(b))
}

// styleInjector wraps css in a script adding it to the document head
func styleInjector(chunk string, css []byte) []byte {
	return []byte(fmt.Sprintf(
		"\n(function(){var s=document.createElement(\"style\");s.setAttribute(\"data-chunk\",%s);s.textContent=%s;document.head.appendChild(s);})();\n",
		jsString(chunk), jsString(string(css))))
}

// loadEnvFile reads KEY=VALUE pairs substituted as process.env.KEY. A missing
// file only warns.
func loadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		tlogger.Warn("msg", "Env file not found, no variable substituted", "file", path)
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		tlogger.Error("msg", "Can't parse env file", "file", path, "err", err)
		return nil, err
	}
	return env, nil
}
