// Package opengraph extracts preview metadata from raw HTML.
package opengraph

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jetpreview/internal/domain"
)

// OpenGraph properties read from <meta property="..."> elements.
const (
	PropertyTitle       = "og:title"
	PropertyDescription = "og:description"
	PropertyImage       = "og:image"
)

// Parse returns the OpenGraph title, description and image of document.
// The first occurrence of each property wins. When no og:title is present
// the trimmed <title> text is used instead. Unparseable input yields an
// empty Metadata.
func Parse(document string) domain.Metadata {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return domain.Metadata{}
	}
	return FromDocument(doc)
}

// FromDocument is Parse for an already parsed document.
func FromDocument(doc *goquery.Document) domain.Metadata {
	var md domain.Metadata

	doc.Find("meta[property]").Each(func(_ int, s *goquery.Selection) {
		property, _ := s.Attr("property")
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		switch strings.TrimSpace(property) {
		case PropertyTitle:
			if md.Title == nil {
				md.Title = domain.StringPtr(content)
			}
		case PropertyDescription:
			if md.Description == nil {
				md.Description = domain.StringPtr(content)
			}
		case PropertyImage:
			if md.ImageURL == nil {
				md.ImageURL = domain.StringPtr(content)
			}
		}
	})

	if md.Title == nil {
		if title := doc.Find("title").First(); title.Length() > 0 {
			md.Title = domain.StringPtr(strings.TrimSpace(title.Text()))
		}
	}
	return md
}
