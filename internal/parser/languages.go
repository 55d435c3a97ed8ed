package parser

import (
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Canonical language ids.
const (
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangTSX        = "tsx"
	LangVue        = "vue"
	LangSvelte     = "svelte"
)

// extToLanguage maps file extensions to canonical language ids.
var extToLanguage = map[string]string{
	".js":     LangJavaScript,
	".jsx":    LangJavaScript,
	".mjs":    LangJavaScript,
	".cjs":    LangJavaScript,
	".ts":     LangTypeScript,
	".mts":    LangTypeScript,
	".cts":    LangTypeScript,
	".tsx":    LangTSX,
	".vue":    LangVue,
	".svelte": LangSvelte,
}

// componentLanguages are single-file-component formats whose imports live in
// an embedded <script> region.
var componentLanguages = map[string]bool{
	LangVue:    true,
	LangSvelte: true,
}

// LoaderFunc produces the grammar for one language. It is called at most once
// per language per Service.
type LoaderFunc func() (*sitter.Language, error)

// defaultLoaders returns the compiled-in grammars. Nothing is initialized
// until a loader is invoked.
func defaultLoaders() map[string]LoaderFunc {
	return map[string]LoaderFunc{
		LangJavaScript: func() (*sitter.Language, error) { return javascript.GetLanguage(), nil },
		LangTypeScript: func() (*sitter.Language, error) { return ts.GetLanguage(), nil },
		LangTSX:        func() (*sitter.Language, error) { return tsx.GetLanguage(), nil },
	}
}

// LanguageForFile returns the canonical language id for a file path based on
// its extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// SourceExtensions returns every recognized extension, sorted.
func SourceExtensions() []string {
	exts := make([]string, 0, len(extToLanguage))
	for ext := range extToLanguage {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
