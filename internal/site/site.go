// Package site holds everything that depends on the retailer's markup:
// the XPath selectors and the parsing of page snapshots.
package site

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/FacetGrab/internal/config"
	"github.com/IshaanNene/FacetGrab/internal/types"
)

// ErrNoMatch is returned when a required section is absent from a snapshot.
var ErrNoMatch = errors.New("no element matches")

// Adapter maps the scraper's needs onto one site's DOM.
type Adapter struct {
	Selectors config.SiteConfig
}

// NewAdapter creates an adapter for the given selectors.
func NewAdapter(sel config.SiteConfig) *Adapter {
	return &Adapter{Selectors: sel}
}

// ItemAnchor returns an XPath for the anchor inside the i-th list item,
// counting from 1 in document order.
func (a *Adapter) ItemAnchor(i int) string {
	return fmt.Sprintf("(%s)[%d]%s", a.Selectors.ListItems, i, descend(a.Selectors.ItemAnchor))
}

// descend turns a relative XPath like ".//a" into a step that can follow
// another expression.
func descend(rel string) string {
	rel = strings.TrimPrefix(rel, ".")
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel
}

// ProductPage is what a detail page snapshot yields.
type ProductPage struct {
	URL        string
	Heading    string
	Thumbnails []string
	Images     []string
}

// Refs lists the page's images in download order: thumbnails first, then
// main images, each numbered from 1 by element position.
func (p *ProductPage) Refs() []types.ImageRef {
	refs := make([]types.ImageRef, 0, len(p.Thumbnails)+len(p.Images))
	for i, u := range p.Thumbnails {
		refs = append(refs, types.ImageRef{URL: u, Index: i + 1, Type: types.ImageThumbnail})
	}
	for i, u := range p.Images {
		refs = append(refs, types.ImageRef{URL: u, Index: i + 1, Type: types.ImageMain})
	}
	return refs
}

// ParseProduct extracts the heading and both galleries from a detail page.
// Image sources are resolved against pageURL. An img without a src keeps
// its slot as an empty URL so numbering still follows element position.
func (a *Adapter) ParseProduct(pageURL, body string) (*ProductPage, error) {
	doc, err := htmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse product page: %w", err)
	}

	heading, err := queryOne(doc, a.Selectors.Heading)
	if err != nil {
		return nil, err
	}

	page := &ProductPage{
		URL:     pageURL,
		Heading: strings.TrimSpace(htmlquery.InnerText(heading)),
	}

	base, _ := url.Parse(pageURL)

	page.Thumbnails, err = gallery(doc, a.Selectors.ThumbnailContainer, a.Selectors.ThumbnailImages, base)
	if err != nil {
		return nil, err
	}
	page.Images, err = gallery(doc, a.Selectors.MainContainer, a.Selectors.MainImages, base)
	if err != nil {
		return nil, err
	}

	return page, nil
}

// Heading returns the trimmed text of the page heading.
func (a *Adapter) Heading(body string) (string, error) {
	doc, err := htmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse product page: %w", err)
	}
	node, err := queryOne(doc, a.Selectors.Heading)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(htmlquery.InnerText(node)), nil
}

func queryOne(doc *html.Node, xpath string) (*html.Node, error) {
	node, err := htmlquery.Query(doc, xpath)
	if err != nil {
		return nil, &types.ElementError{Selector: xpath, Err: err}
	}
	if node == nil {
		return nil, &types.ElementError{Selector: xpath, Err: ErrNoMatch}
	}
	return node, nil
}

func gallery(doc *html.Node, containerXP, imagesXP string, base *url.URL) ([]string, error) {
	container, err := queryOne(doc, containerXP)
	if err != nil {
		return nil, err
	}

	nodes, err := htmlquery.QueryAll(container, imagesXP)
	if err != nil {
		return nil, &types.ElementError{Selector: imagesXP, Err: err}
	}

	srcs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		srcs = append(srcs, resolve(base, strings.TrimSpace(htmlquery.SelectAttr(n, "src"))))
	}
	return srcs, nil
}

func resolve(base *url.URL, src string) string {
	if src == "" || base == nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}

// IsNotFound reports whether a page snapshot is the retailer's error page:
// a title containing "404" or "Page Not Found" anywhere in the body text.
func IsNotFound(body string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return false
	}
	if strings.Contains(doc.Find("title").First().Text(), "404") {
		return true
	}
	return strings.Contains(strings.ToLower(doc.Find("body").Text()), "page not found")
}
