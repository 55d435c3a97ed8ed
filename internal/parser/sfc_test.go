package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptRegion_NoScript(t *testing.T) {
	t.Parallel()
	region, lang, srcs := scriptRegion([]byte(`<template><div/></template>`))
	assert.Nil(t, region)
	assert.Equal(t, LangJavaScript, lang)
	assert.Empty(t, srcs)
}

func TestScriptRegion_TwoBlocksWidenLanguage(t *testing.T) {
	t.Parallel()
	src := `<script>
export default { name: 'X' }
</script>
<script setup lang="tsx">
import A from './A'
</script>`
	region, lang, _ := scriptRegion([]byte(src))
	assert.Equal(t, LangTSX, lang)
	assert.Contains(t, string(region), "export default")
	assert.Contains(t, string(region), "import A from './A'")
	assert.NotContains(t, string(region), "</script")
}

func TestScriptRegion_IgnoresSimilarTags(t *testing.T) {
	t.Parallel()
	src := `<scripts>nope</scripts><SCRIPT lang='ts'>import b from './b'</SCRIPT>`
	region, lang, _ := scriptRegion([]byte(src))
	assert.Equal(t, LangTypeScript, lang)
	assert.Equal(t, "import b from './b'", string(region))
}

func TestScriptRegion_SelfClosingSrc(t *testing.T) {
	t.Parallel()
	region, _, srcs := scriptRegion([]byte(`<script src="./x.ts" lang="ts" />`))
	assert.Nil(t, region)
	assert.Equal(t, []string{"./x.ts"}, srcs)
}

func TestScriptRegion_UnterminatedBlock(t *testing.T) {
	t.Parallel()
	region, _, _ := scriptRegion([]byte(`<script>import c from './c'`))
	assert.Equal(t, "import c from './c'", string(region))
}
