package candidate

import (
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var separators = regexp.MustCompile(`[\s_\-.]+`)

// IdentityKey derives the deduplication key from a source filename: directory
// and extension are stripped and separator runs become single spaces. Case is
// preserved.
func IdentityKey(filename string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.TrimSpace(separators.ReplaceAllString(base, " "))
}

// DisplayName title-cases an identity key.
func DisplayName(identityKey string) string {
	return cases.Title(language.English).String(identityKey)
}

// HasExtension reports whether filename ends with ext, ignoring case.
func HasExtension(filename, ext string) bool {
	if ext == "" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(filename)), strings.ToLower(ext))
}

// CVLink joins the public base URL and the original filename untouched.
func CVLink(baseURL, filename string) string {
	if baseURL == "" {
		return filename
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + filename
}

// NameKey folds a person's name for loose comparison: separators collapse to
// single spaces and case is dropped.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(separators.ReplaceAllString(name, " ")))
}
