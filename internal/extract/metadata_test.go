// File: internal/extract/metadata_test.go
package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metaFixture = `<!DOCTYPE html>
<html lang="en-GB">
<head>
  <title>  The Daily Build  </title>
  <meta name="description" content="A site about builds.">
  <link rel="canonical" href="/articles/today">
  <meta property="og:title" content="The Daily Build (OG)">
  <meta property="og:description" content="Builds, daily.">
  <meta property="og:image" content="img/cover.png">
</head>
<body><p>hi</p></body>
</html>`

func TestMetadataExtractsEveryField(t *testing.T) {
	meta := Metadata(metaFixture, "https://daily.test/articles/today?ref=hn")
	require.NotNil(t, meta)

	assert.Equal(t, "The Daily Build", meta.Title)
	assert.Equal(t, "en-GB", meta.Lang)
	assert.Equal(t, "A site about builds.", meta.Description)
	assert.Equal(t, "https://daily.test/articles/today", meta.Canonical)
	assert.Equal(t, "The Daily Build (OG)", meta.OGTitle)
	assert.Equal(t, "Builds, daily.", meta.OGDesc)
	assert.Equal(t, "https://daily.test/articles/img/cover.png", meta.OGImage)
}

func TestMetadataMissingTagsYieldEmptyFields(t *testing.T) {
	meta := Metadata(`<html><body><p>bare</p></body></html>`, "https://daily.test/")
	require.NotNil(t, meta)

	assert.Empty(t, meta.Title)
	assert.Empty(t, meta.Description)
	assert.Empty(t, meta.Canonical)
	assert.Empty(t, meta.Lang)
	assert.Empty(t, meta.OGTitle)
	assert.Empty(t, meta.OGImage)
}

func TestMetadataOpenGraphFallsBackToNameAttribute(t *testing.T) {
	src := `<html><head><meta name="og:title" content="Named OG"></head><body></body></html>`

	meta := Metadata(src, "https://daily.test/")
	assert.Equal(t, "Named OG", meta.OGTitle)
}

func TestMetadataKeepsAbsoluteCanonical(t *testing.T) {
	src := `<html><head><link rel="canonical" href="https://mirror.test/here"></head><body></body></html>`

	meta := Metadata(src, "https://daily.test/there")
	assert.Equal(t, "https://mirror.test/here", meta.Canonical)
}
