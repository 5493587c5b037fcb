package enums

import "fmt"

// MediaKind defines which catalog record an uploaded image belongs to.
type MediaKind string

const (
	MediaKindItem       MediaKind = "item"
	MediaKindCollection MediaKind = "collection"
)

var validMediaKinds = []MediaKind{
	MediaKindItem,
	MediaKindCollection,
}

// String returns the literal string for the kind.
func (m MediaKind) String() string {
	return string(m)
}

// IsValid reports whether the kind is known.
func (m MediaKind) IsValid() bool {
	for _, candidate := range validMediaKinds {
		if candidate == m {
			return true
		}
	}
	return false
}

// ObjectPrefix is the bucket folder images of this kind are stored under.
func (m MediaKind) ObjectPrefix() string {
	switch m {
	case MediaKindCollection:
		return "collection-images"
	default:
		return "item-images"
	}
}

// ParseMediaKind converts raw input into a MediaKind; empty input defaults to item.
func ParseMediaKind(value string) (MediaKind, error) {
	if value == "" {
		return MediaKindItem, nil
	}
	for _, candidate := range validMediaKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid media kind %q", value)
}
