package catalog

import "fmt"

// IDScheme names which book identifier a prediction table keys its items by.
type IDScheme string

const (
	// SchemeExternal keys items by Book.ExternalID.
	SchemeExternal IDScheme = "external"
	// SchemeCatalog keys items by Book.ID.
	SchemeCatalog IDScheme = "catalog"
)

// IsValid checks if the scheme is one of the supported values.
func (s IDScheme) IsValid() bool {
	return s == SchemeExternal || s == SchemeCatalog
}

// ParseIDScheme converts a config value to an IDScheme.
func ParseIDScheme(s string) (IDScheme, error) {
	scheme := IDScheme(s)
	if !scheme.IsValid() {
		return "", fmt.Errorf("unknown id scheme %q (want %q or %q)", s, SchemeExternal, SchemeCatalog)
	}
	return scheme, nil
}
