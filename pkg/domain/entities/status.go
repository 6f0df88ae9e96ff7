package entities

import "fmt"

// LineStatus represents the editing state of an order line
type LineStatus int

const (
	// LineClean means no pending edits
	LineClean LineStatus = iota
	// LineDraft means unsaved edits exist
	LineDraft
	// LineCommitted means the last save succeeded and nothing was edited since
	LineCommitted
)

// String method for LineStatus enum
func (s LineStatus) String() string {
	switch s {
	case LineClean:
		return "clean"
	case LineDraft:
		return "draft"
	case LineCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name
func (s LineStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name
func (s *LineStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "clean":
		*s = LineClean
	case "draft":
		*s = LineDraft
	case "committed":
		*s = LineCommitted
	default:
		return fmt.Errorf("unknown line status %q", string(text))
	}
	return nil
}
