package icon

import (
	"strings"

	"github.com/nao1215/iconscan/internal/model"
)

// IsAppleTouchIcon reports whether link is a touch icon
// (apple-touch-icon or apple-touch-icon-precomposed).
func IsAppleTouchIcon(link model.IconLink) bool {
	return strings.HasPrefix(link.Rel, RelAppleTouchIcon)
}

// IsHTML5Icon reports whether link is a plain rel="icon" link.
func IsHTML5Icon(link model.IconLink) bool {
	return link.Rel == RelIcon
}

// IsShortcutIcon reports whether link is a legacy rel="shortcut icon" link.
func IsShortcutIcon(link model.IconLink) bool {
	return link.Rel == RelShortcutIcon
}

// Partition splits links into touch icons and HTML5 icons, keeping order.
// Links that are neither are dropped.
func Partition(links []model.IconLink) (touch, html5 []model.IconLink) {
	touch = make([]model.IconLink, 0)
	html5 = make([]model.IconLink, 0)
	for _, link := range links {
		if IsAppleTouchIcon(link) {
			touch = append(touch, link)
		}
		if IsHTML5Icon(link) {
			html5 = append(html5, link)
		}
	}
	return touch, html5
}

// NormalizeURL resolves href against base using literal prefix rules:
// http:// and https:// hrefs are returned unchanged, a leading "/" is
// appended to base directly, and anything else is appended after a "/".
//
// Design decision: We do not use net/url.ResolveReference here. Reports
// quote the resolved URL, and the literal rules keep those URLs stable:
// no percent-encoding, no dot-segment removal, and protocol-relative
// "//host" hrefs are treated as plain paths.
func NormalizeURL(base, href string) string {
	if strings.HasPrefix(href, "https://") || strings.HasPrefix(href, "http://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return base + href
	}
	return base + "/" + href
}
