package domain

import (
	"regexp"
	"strings"
)

const (
	// ProfileDocumentScheme prefixes every document id derived from a profile URL.
	ProfileDocumentScheme = "linkedin://"
	// ProfileCategory distinguishes ingested profiles from the static catalog.
	ProfileCategory = "People"
	// ProfileGeneration is the generation facet value of ingested profiles.
	ProfileGeneration = "LinkedIn"
	// CatalogCategory is the category facet value of catalog entries.
	CatalogCategory = "Pokemon"
	// DefaultFileExtension is sent with every pushed document.
	DefaultFileExtension = ".html"
)

// NormalizedDocument is the canonical document shape pushed to the index.
// Every field is populated, fallbacks included.
type NormalizedDocument struct {
	DocumentID    string   `json:"documentId"`
	Title         string   `json:"title"`
	ClickableURI  string   `json:"clickableUri"`
	Body          string   `json:"data"`
	FileExtension string   `json:"fileExtension"`
	ImageURI      string   `json:"pokemonimage"`
	Number        int      `json:"pokemonnumber"`
	Types         []string `json:"pokemontype"`
	Species       string   `json:"pokemonspecies"`
	Generation    string   `json:"pokemongeneration"`
	Category      string   `json:"pokemoncategory"`

	// Extra holds additional index fields, such as catalog abilities and stats.
	Extra map[string]interface{} `json:"-"`
}

var schemePattern = regexp.MustCompile(`^(?i)https?://`)

// ProfileDocumentID derives the stable document id for a profile URL.
// The same URL always yields the same id.
func ProfileDocumentID(sourceURL string) string {
	return ProfileDocumentScheme + schemePattern.ReplaceAllString(strings.TrimSpace(sourceURL), "")
}

// ProfileURLPattern is the human-readable form of the accepted profile URL shape.
const ProfileURLPattern = "https://www.linkedin.com/in/<profile-handle>"

var profileURLRe = regexp.MustCompile(`^https?://([a-z]{2,3}\.)?linkedin\.com/in/[^/?#\s]+/?([?#].*)?$`)

// IsProfileURL reports whether u matches the recognized profile URL pattern.
func IsProfileURL(u string) bool {
	return profileURLRe.MatchString(strings.ToLower(strings.TrimSpace(u)))
}
