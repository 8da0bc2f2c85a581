// File: internal/extract/text_test.go
package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextStripsNonContentAndBreaksBlocks(t *testing.T) {
	src := `<!DOCTYPE html><html><head><title>Ignored</title><style>p{color:red}</style></head>
<body>
  <h1>Heading</h1>
  <p>First   paragraph with <b>bold</b> text.</p>
  <script>var ignored = true;</script>
  <ul><li>one</li><li>two</li></ul>
  <div>tail</div>
</body></html>`

	got := Text(src)
	assert.Equal(t, "Heading\nFirst paragraph with bold text.\none\ntwo\ntail", got)
}

func TestTextKeepsInlineElementsOnOneLine(t *testing.T) {
	got := Text(`<p>a <span>b</span> <em>c</em> d</p>`)
	assert.Equal(t, "a b c d", got)
}

func TestTextBreaksOnBr(t *testing.T) {
	got := Text(`<p>line one<br>line two</p>`)
	assert.Equal(t, "line one\nline two", got)
}

func TestTextDropsNoscriptAndTemplates(t *testing.T) {
	src := `<body><noscript>enable js</noscript><template><p>stamp</p></template><p>visible</p></body>`
	assert.Equal(t, "visible", Text(src))
}

func TestTextOnPlainWords(t *testing.T) {
	assert.Equal(t, "plain words", Text("plain words"))
}

func TestTextOnEmptyInput(t *testing.T) {
	assert.Empty(t, Text(""))
}

func TestTextTables(t *testing.T) {
	src := `<table><tr><th>k</th><th>v</th></tr><tr><td>port</td><td>8080</td></tr></table>`
	assert.Equal(t, "k\nv\nport\n8080", Text(src))
}
