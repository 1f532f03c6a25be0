package service

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/timmy/pokedex/internal/domain"
)

const (
	maxExperienceEntries = 3
	avatarColor          = "#0077B5"
)

// extractor returns a field value from a raw payload, reporting whether it found one.
type extractor func(raw map[string]interface{}) (string, bool)

// firstOf tries extractors in order; the first non-empty result wins.
func firstOf(raw map[string]interface{}, extractors ...extractor) string {
	for _, ex := range extractors {
		if v, ok := ex(raw); ok {
			return v
		}
	}
	return ""
}

// key extracts a non-blank string value.
func key(name string) extractor {
	return func(raw map[string]interface{}) (string, bool) {
		return stringValue(raw[name])
	}
}

// nested extracts a non-blank string found by walking object keys.
func nested(path ...string) extractor {
	return func(raw map[string]interface{}) (string, bool) {
		cur := raw
		for i, p := range path {
			if i == len(path)-1 {
				return stringValue(cur[p])
			}
			next, ok := cur[p].(map[string]interface{})
			if !ok {
				return "", false
			}
			cur = next
		}
		return "", false
	}
}

// joined joins whichever of the extractors succeed with sep.
func joined(sep string, extractors ...extractor) extractor {
	return func(raw map[string]interface{}) (string, bool) {
		var parts []string
		for _, ex := range extractors {
			if v, ok := ex(raw); ok {
				parts = append(parts, v)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, sep), true
	}
}

// unless skips ex when the flag key is true.
func unless(flag string, ex extractor) extractor {
	return func(raw map[string]interface{}) (string, bool) {
		if b, _ := raw[flag].(bool); b {
			return "", false
		}
		return ex(raw)
	}
}

func constant(v string) extractor {
	return func(map[string]interface{}) (string, bool) {
		return v, true
	}
}

func stringValue(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

var (
	nameChain     = []extractor{key("name"), key("full_name"), joined(" ", key("first_name"), key("last_name"))}
	headlineChain = []extractor{key("headline"), key("position")}
	summaryChain  = []extractor{key("about"), key("summary")}
	locationChain = []extractor{key("location"), key("city")}
	companyChain  = []extractor{key("current_company_name"), nested("current_company", "name")}
	imageChain    = []extractor{unless("default_avatar", key("avatar")), unless("default_avatar", key("avatar_url")), unless("default_avatar", key("image_url"))}
	titleChain    = []extractor{key("title"), key("job_title")}
	employerChain = []extractor{key("company"), key("company_name")}
)

// NormalizeProfile maps a raw profile payload onto the index document schema.
// It is total: every field gets a value and no input makes it fail.
func NormalizeProfile(raw map[string]interface{}, sourceURL string) domain.NormalizedDocument {
	name := firstOf(raw, append(nameChain, constant("Unknown"))...)
	headline := firstOf(raw, headlineChain...)
	summary := firstOf(raw, summaryChain...)
	location := firstOf(raw, locationChain...)
	company := firstOf(raw, companyChain...)
	position := firstOf(raw, key("position"))
	image := firstOf(raw, append(imageChain, constant(InitialsAvatar(name)))...)

	var body []string
	if headline != "" {
		body = append(body, headline)
	}
	if company != "" && !strings.Contains(strings.ToLower(headline), strings.ToLower(company)) {
		body = append(body, "Company: "+company)
	}
	if summary != "" {
		body = append(body, summary)
	}
	if location != "" {
		body = append(body, "Location: "+location)
	}
	if exp := experienceLines(raw["experience"]); len(exp) > 0 {
		body = append(body, "Experience:\n"+strings.Join(exp, "\n"))
	}
	data := strings.Join(body, "\n\n")
	if data == "" {
		data = name + " - LinkedIn Profile"
	}

	var types []string
	for _, t := range []string{company, location} {
		if t != "" {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		types = []string{"Professional"}
	}

	species := firstOf(raw,
		constant(headline),
		func(map[string]interface{}) (string, bool) {
			if position != "" && company != "" {
				return position + " at " + company, true
			}
			return "", false
		},
		constant(position),
		constant(company),
		constant("LinkedIn Professional"),
	)

	return domain.NormalizedDocument{
		DocumentID:    domain.ProfileDocumentID(sourceURL),
		Title:         name,
		ClickableURI:  strings.TrimSpace(sourceURL),
		Body:          data,
		FileExtension: domain.DefaultFileExtension,
		ImageURI:      image,
		Number:        0,
		Types:         types,
		Species:       species,
		Generation:    domain.ProfileGeneration,
		Category:      domain.ProfileCategory,
	}
}

// experienceLines flattens up to three experience entries into "title at company" lines.
func experienceLines(v interface{}) []string {
	entries, ok := v.([]interface{})
	if !ok {
		return nil
	}
	if len(entries) > maxExperienceEntries {
		entries = entries[:maxExperienceEntries]
	}

	var lines []string
	for _, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		title := firstOf(entry, titleChain...)
		employer := firstOf(entry, employerChain...)
		switch {
		case title != "" && employer != "":
			lines = append(lines, title+" at "+employer)
		case title != "":
			lines = append(lines, title)
		case employer != "":
			lines = append(lines, employer)
		}
	}
	return lines
}

// InitialsAvatar renders a square SVG with the name's initials as a data URI.
func InitialsAvatar(name string) string {
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="200" height="200" viewBox="0 0 200 200">`+
		`<rect width="200" height="200" fill="%s"/>`+
		`<text x="100" y="100" dy=".35em" text-anchor="middle" font-family="Arial, sans-serif" font-size="80" font-weight="bold" fill="#FFFFFF">%s</text>`+
		`</svg>`, avatarColor, initials(name))
	return "data:image/svg+xml," + strings.ReplaceAll(url.QueryEscape(svg), "+", "%20")
}

func initials(name string) string {
	words := strings.Fields(name)
	var out []rune
	switch {
	case len(words) >= 2:
		out = []rune{firstRune(words[0]), firstRune(words[len(words)-1])}
	case len(words) == 1:
		r := []rune(words[0])
		if len(r) > 2 {
			r = r[:2]
		}
		out = r
	default:
		out = []rune("?")
	}
	for i, r := range out {
		out[i] = unicode.ToUpper(r)
	}
	return escapeXML(string(out))
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return '?'
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}

// ValidateProfileURL rejects URLs that are not profile pages. The error names the accepted pattern.
func ValidateProfileURL(u string) error {
	if strings.TrimSpace(u) == "" {
		return domain.NewError(domain.KindValidation, "url is required, expected %s", domain.ProfileURLPattern)
	}
	if !domain.IsProfileURL(u) {
		return domain.NewError(domain.KindValidation, "invalid profile url %q, expected %s", u, domain.ProfileURLPattern)
	}
	return nil
}
