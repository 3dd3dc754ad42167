package model

import (
	"encoding/json"
	"strings"
)

// Attr is an HTML attribute that may be absent from an element.
// Absence and an empty value are different states: <link type=""> has a
// present, empty type while <link> has none.
type Attr struct {
	value   string
	present bool
}

// AttrOf returns a present attribute with the given value.
func AttrOf(value string) Attr {
	return Attr{value: value, present: true}
}

// Get returns the attribute value and whether it was present.
func (a Attr) Get() (string, bool) {
	return a.value, a.present
}

// Present reports whether the attribute was set on the element.
func (a Attr) Present() bool {
	return a.present
}

// Is reports whether the attribute is present and equal to v.
func (a Attr) Is(v string) bool {
	return a.present && a.value == v
}

// MarshalJSON encodes an absent attribute as null.
func (a Attr) MarshalJSON() ([]byte, error) {
	if !a.present {
		return []byte("null"), nil
	}
	return json.Marshal(a.value)
}

// UnmarshalJSON decodes null as an absent attribute.
func (a *Attr) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*a = Attr{}
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = AttrOf(v)
	return nil
}

// IconLink holds the icon-relevant attributes of one <link> element.
// Links are kept in document order; the position carries no meaning
// beyond deterministic iteration.
type IconLink struct {
	// Rel is the rel attribute as written in the document.
	Rel string `json:"rel"`

	// Href is the raw href attribute, possibly relative.
	Href string `json:"href"`

	// Type is the declared MIME type.
	Type Attr `json:"type"`

	// Sizes is the declared size, formatted "WxH".
	Sizes Attr `json:"sizes"`
}
