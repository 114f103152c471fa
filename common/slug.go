package common

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrEmptySlug = errors.New("slug cannot be empty")
	nonSlugChars = regexp.MustCompile(`[^a-z0-9._]+`)
)

// Slugify lowercases input and collapses every run of characters outside
// [a-z0-9._] into one hyphen, so "My Service.py" becomes "my-service.py".
// Dots and underscores survive so file extensions stay readable. When input
// slugifies to nothing, fallback is used instead.
func Slugify(input, fallback string) (string, error) {
	slug := slugify(input)
	if slug == "" {
		slug = slugify(fallback)
	}
	if slug == "" {
		return "", ErrEmptySlug
	}
	return slug, nil
}

func slugify(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	slug := nonSlugChars.ReplaceAllString(lower, "-")
	return strings.Trim(slug, "-.")
}
