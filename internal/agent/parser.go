package agent

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors are the CSS hooks used to pull pieces out of a SERP. The
// zero value targets the DuckDuckGo HTML endpoint.
type Selectors struct {
	Result  string
	Title   string
	Snippet string
	Related string
}

// ParsedPage is what the Parser extracts from one SERP.
type ParsedPage struct {
	Results []ResultItem
	Related []string
}

// Parser extracts organic results from SERP HTML.
type Parser struct {
	sel Selectors
}

// NewParser builds a Parser, filling selector defaults.
func NewParser(sel Selectors) *Parser {
	if sel.Result == "" {
		sel.Result = ".result"
	}
	if sel.Title == "" {
		sel.Title = "a.result__a"
	}
	if sel.Snippet == "" {
		sel.Snippet = "a.result__snippet"
	}
	return &Parser{sel: sel}
}

// Parse pulls ranked results and related searches out of a SERP.
// Results without a title or a parseable target URL are skipped;
// positions are assigned in document order after skipping.
func (p *Parser) Parse(pageHTML []byte) (ParsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return ParsedPage{}, fmt.Errorf("parse serp html: %w", err)
	}

	var page ParsedPage
	position := 0
	doc.Find(p.sel.Result).Each(func(_ int, s *goquery.Selection) {
		link := s.Find(p.sel.Title).First()
		href, ok := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if !ok || title == "" {
			return
		}
		target := resolveRedirect(href)
		domain := domainOf(target)
		if domain == "" {
			return
		}
		resultType := "organic"
		if s.HasClass("result--ad") {
			resultType = "ad"
		}
		position++
		page.Results = append(page.Results, ResultItem{
			Position:    position,
			Title:       title,
			URL:         target,
			Domain:      domain,
			Description: strings.TrimSpace(s.Find(p.sel.Snippet).First().Text()),
			ResultType:  resultType,
		})
	})

	if p.sel.Related != "" {
		doc.Find(p.sel.Related).Each(func(_ int, s *goquery.Selection) {
			if term := strings.TrimSpace(s.Text()); term != "" {
				page.Related = append(page.Related, term)
			}
		})
	}
	return page, nil
}

// resolveRedirect unwraps the tracking redirect some engines wrap
// result links in (DuckDuckGo's /l/?uddg=<target>).
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

// domainOf extracts the host, lowercased, without a leading www or a
// port. Relative URLs yield an empty string.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
