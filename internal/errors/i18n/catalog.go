// Package i18n holds localized user-facing messages for domain error codes.
package i18n

import (
	"strings"
	"text/template"
)

// Code mirrors the domain error code as a string key.
type Code = string

// Catalog maps error codes to localized message templates.
type Catalog struct {
	locale   string
	messages map[Code]string
}

// Locale returns the catalog locale tag.
func (c *Catalog) Locale() string {
	if c == nil {
		return ""
	}
	return c.locale
}

// Format renders the message template for code with the given metadata.
// Unknown codes fall back to a generic message so a missing translation can
// never leak an internal code to an end user.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	if c == nil {
		return genericMessage
	}
	raw, ok := c.messages[code]
	if !ok {
		return genericMessage
	}
	if len(metadata) == 0 || !strings.Contains(raw, "{{") {
		return raw
	}

	tmpl, err := template.New(code).Parse(raw)
	if err != nil {
		return raw
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, metadata); err != nil {
		return raw
	}
	return sb.String()
}

const genericMessage = "Something went wrong. Please try again."

// GetCatalog returns the catalog for a locale, defaulting to en-US.
func GetCatalog(locale string) *Catalog {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "en-us", "en", "":
		return enUSCatalog
	default:
		return enUSCatalog
	}
}
