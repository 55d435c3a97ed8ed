package parser

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	scriptOpen  = []byte("<script")
	scriptClose = []byte("</script")

	langAttr = regexp.MustCompile(`(?i)(?:^|\s)lang\s*=\s*["']([^"']*)["']`)
	srcAttr  = regexp.MustCompile(`(?i)(?:^|\s)src\s*=\s*["']([^"']*)["']`)
)

// scriptRegion finds every <script> block of a single-file component by
// bracketing tag search. It returns the concatenated script bodies, the
// language the bodies should be parsed with, and the specifiers referenced by
// src attributes.
func scriptRegion(content []byte) (region []byte, lang string, srcs []string) {
	lower := bytes.ToLower(content)
	lang = LangJavaScript

	var bodies [][]byte
	pos := 0
	for {
		i := bytes.Index(lower[pos:], scriptOpen)
		if i < 0 {
			break
		}
		start := pos + i
		after := start + len(scriptOpen)
		if after >= len(lower) {
			break
		}
		if c := lower[after]; c != '>' && c != ' ' && c != '\t' && c != '\n' && c != '\r' && c != '/' {
			pos = after
			continue
		}
		gt := bytes.IndexByte(lower[after:], '>')
		if gt < 0 {
			break
		}
		tagEnd := after + gt
		attrs := string(content[after:tagEnd])

		if m := srcAttr.FindStringSubmatch(attrs); m != nil && m[1] != "" {
			srcs = append(srcs, m[1])
		}
		if m := langAttr.FindStringSubmatch(attrs); m != nil {
			lang = widerLanguage(lang, scriptLanguage(m[1]))
		}

		if strings.HasSuffix(strings.TrimSpace(attrs), "/") {
			pos = tagEnd + 1
			continue
		}
		closeIdx := bytes.Index(lower[tagEnd+1:], scriptClose)
		if closeIdx < 0 {
			bodies = append(bodies, content[tagEnd+1:])
			break
		}
		bodies = append(bodies, content[tagEnd+1:tagEnd+1+closeIdx])
		pos = tagEnd + 1 + closeIdx + len(scriptClose)
	}

	if len(bodies) == 0 {
		return nil, lang, srcs
	}
	return bytes.Join(bodies, []byte("\n")), lang, srcs
}

func scriptLanguage(attr string) string {
	switch strings.ToLower(strings.TrimSpace(attr)) {
	case "ts", "typescript":
		return LangTypeScript
	case "tsx":
		return LangTSX
	default:
		return LangJavaScript
	}
}

// widerLanguage picks the grammar that can parse both blocks: TSX accepts
// TypeScript, TypeScript accepts plain JavaScript.
func widerLanguage(a, b string) string {
	rank := map[string]int{LangJavaScript: 0, LangTypeScript: 1, LangTSX: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
