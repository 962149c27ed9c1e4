package links

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/lueurxax/signal-digest/internal/platform/htmlutils"
)

// ErrNoReadableContent is returned for pages with neither article text nor
// a meta description.
var ErrNoReadableContent = errors.New("no readable content")

// Article is the part of a page used to fill in an empty item summary.
type Article struct {
	Title       string
	Description string
	Text        string
	Published   time.Time
}

// Summary returns the description, or the article text when there is none,
// with whitespace collapsed and clipped to limit runes.
func (a Article) Summary(limit int) string {
	s := a.Description
	if s == "" {
		s = a.Text
	}

	s = htmlutils.CollapseWhitespace(s)

	if r := []rune(s); limit > 0 && len(r) > limit {
		s = strings.TrimSpace(string(r[:limit]))
	}

	return s
}

// ReadArticle extracts an Article from an HTML page. Readability supplies the
// text. The head's meta tags supply the description and publish time, and
// stand in for everything when readability cannot parse the page.
func ReadArticle(page []byte, pageURL string) (Article, error) {
	head := readHead(page)

	a := Article{
		Title:       first(head["og:title"], head["title"]),
		Description: first(head["og:description"], head["description"]),
		Published:   parseTime(first(head["article:published_time"], head["og:published_time"])),
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		u = nil
	}

	if parsed, err := readability.FromReader(bytes.NewReader(page), u); err == nil {
		a.Title = first(parsed.Title, a.Title)
		a.Text = strings.TrimSpace(parsed.TextContent)

		if a.Description == "" {
			a.Description = strings.TrimSpace(parsed.Excerpt)
		}
	}

	if a.Description == "" && a.Text == "" {
		return a, ErrNoReadableContent
	}

	return a, nil
}

// readHead tokenizes the document up to <body> and collects <title> plus meta
// name/property values, keyed in lower case.
func readHead(page []byte) map[string]string {
	out := make(map[string]string)
	z := html.NewTokenizer(bytes.NewReader(page))

	inTitle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.TextToken:
			if inTitle && out["title"] == "" {
				out["title"] = strings.TrimSpace(string(z.Text()))
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "title" {
				inTitle = false
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()

			switch string(name) {
			case "body":
				return out
			case "title":
				inTitle = true
			case "meta":
				if hasAttr {
					key, content := metaAttrs(z)
					if key != "" && out[key] == "" {
						out[key] = strings.TrimSpace(content)
					}
				}
			}
		}
	}
}

func metaAttrs(z *html.Tokenizer) (key, content string) {
	for {
		k, v, more := z.TagAttr()

		switch strings.ToLower(string(k)) {
		case "name", "property":
			key = strings.ToLower(string(v))
		case "content":
			content = string(v)
		}

		if !more {
			return key, content
		}
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}
	}

	return t.UTC()
}
