package icon

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/iconscan/internal/model"
)

// Rel values kept by the extractor.
const (
	RelIcon                     = "icon"
	RelAppleTouchIcon           = "apple-touch-icon"
	RelAppleTouchIconPrecompose = "apple-touch-icon-precomposed"
	RelShortcutIcon             = "shortcut icon"
)

// extractedRels is compared against the lower-cased rel attribute.
// "shortcut icon" is deliberately absent.
var extractedRels = map[string]bool{
	RelIcon:                     true,
	RelAppleTouchIcon:           true,
	RelAppleTouchIconPrecompose: true,
}

// ParseIcons parses an HTML document and returns its icon links in
// document order.
//
// Design decision: We use golang.org/x/net/html because it implements the
// HTML5 parsing algorithm, so unclosed tags, stray attributes and other tag
// soup never abort extraction. The only error source is the reader itself.
//
// A <link> element in the HTML namespace is kept when it has a rel
// attribute whose lower-cased value is exactly one of icon,
// apple-touch-icon or apple-touch-icon-precomposed. Links inside SVG or
// MathML content are foreign elements and are skipped. The rel value is
// stored as written.
func ParseIcons(r io.Reader) ([]model.IconLink, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	icons := make([]model.IconLink, 0)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Namespace == "" && n.Data == "link" {
			if link, ok := iconLink(n); ok {
				icons = append(icons, link)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return icons, nil
}

// ParseIconsString is a convenience wrapper around ParseIcons.
func ParseIconsString(document string) ([]model.IconLink, error) {
	return ParseIcons(strings.NewReader(document))
}

// iconLink converts a <link> node into an IconLink if its rel qualifies.
// Attribute namespaces are ignored.
func iconLink(n *html.Node) (model.IconLink, bool) {
	rel, ok := getAttr(n, "rel")
	if !ok || !extractedRels[strings.ToLower(rel)] {
		return model.IconLink{}, false
	}

	link := model.IconLink{Rel: rel}
	if href, ok := getAttr(n, "href"); ok {
		link.Href = href
	}
	if typ, ok := getAttr(n, "type"); ok {
		link.Type = model.AttrOf(typ)
	}
	if sizes, ok := getAttr(n, "sizes"); ok {
		link.Sizes = model.AttrOf(sizes)
	}
	return link, true
}

// getAttr retrieves an attribute value from an HTML node and reports
// whether it was present.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
