package links

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testArticleURL = "https://example.com/article"

func TestReadHead(t *testing.T) {
	page := `
<html>
<head>
    <title>
        Test Page Title
    </title>
    <meta NAME="Description" CONTENT="This is a test description">
    <meta property="og:title" content="OG Title">
    <meta property="article:published_time" content="2026-01-09T08:00:00Z">
</head>
<body><meta name="description" content="ignored after body"></body>
</html>
`
	head := readHead([]byte(page))

	assert.Equal(t, "Test Page Title", head["title"])
	assert.Equal(t, "This is a test description", head["description"])
	assert.Equal(t, "OG Title", head["og:title"])
	assert.Equal(t, "2026-01-09T08:00:00Z", head["article:published_time"])
}

func TestReadHeadEmpty(t *testing.T) {
	assert.Empty(t, readHead(nil))
	assert.Empty(t, readHead([]byte("<not valid html>>>"))["title"])
}

func TestReadArticle(t *testing.T) {
	page := []byte(`
<!DOCTYPE html>
<html>
<head>
    <title>Test Article</title>
    <meta name="description" content="A test description">
    <meta property="article:published_time" content="2026-01-09T08:00:00+02:00">
</head>
<body>
    <article>
        <h1>Test Article</h1>
        <p>This is a test article with some content. It has multiple sentences and paragraphs so
        that the reader mode heuristics consider it the main content of the page.</p>
        <p>This is the second paragraph with more text about evaluation harnesses and agents.</p>
    </article>
</body>
</html>`)

	a, err := ReadArticle(page, testArticleURL)
	require.NoError(t, err)

	assert.Equal(t, "A test description", a.Description)
	assert.Contains(t, a.Text, "evaluation harnesses")
	assert.NotEmpty(t, a.Title)
	assert.Equal(t, time.Date(2026, 1, 9, 6, 0, 0, 0, time.UTC), a.Published)
	assert.Equal(t, "A test description", a.Summary(500))
}

func TestReadArticleWithoutContent(t *testing.T) {
	_, err := ReadArticle([]byte("<html><head><title>t</title></head><body></body></html>"), testArticleURL)
	require.ErrorIs(t, err, ErrNoReadableContent)
}

func TestArticleSummary(t *testing.T) {
	tests := []struct {
		name    string
		article Article
		limit   int
		want    string
	}{
		{"description first", Article{Description: "short  desc", Text: "body"}, 100, "short desc"},
		{"text fallback", Article{Text: "body\n\ntext"}, 100, "body text"},
		{"clipped to runes", Article{Description: strings.Repeat("é", 10)}, 4, "éééé"},
		{"no limit", Article{Description: "abc"}, 0, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.article.Summary(tt.limit))
		})
	}
}

func TestParseTime(t *testing.T) {
	assert.True(t, parseTime("").IsZero())
	assert.True(t, parseTime("not a date").IsZero())
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), parseTime("2025-03-01"))
}
