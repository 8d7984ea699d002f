package domain

// Metadata is the preview extracted for a URL. A nil field means the page
// did not provide that value.
type Metadata struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// IsEmpty reports whether no field was extracted.
func (m Metadata) IsEmpty() bool {
	return m.Title == nil && m.Description == nil && m.ImageURL == nil
}

// TitleOr returns the title, or fallback when the title is absent or blank.
func (m Metadata) TitleOr(fallback string) string {
	if m.Title == nil || *m.Title == "" {
		return fallback
	}
	return *m.Title
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
