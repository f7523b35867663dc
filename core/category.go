package core

import "strings"

// PremiumCategory groups endpoints by the billing state they require.
// CategoryOther marks non-premium endpoints.
type PremiumCategory string

const (
	CategoryExports        PremiumCategory = "exports"
	CategoryAI             PremiumCategory = "ai"
	CategoryHeavyRecompute PremiumCategory = "heavy_recompute"
	CategoryOther          PremiumCategory = "other"
)

// IsPremium reports whether the category requires active entitlement.
func (c PremiumCategory) IsPremium() bool {
	switch c {
	case CategoryExports, CategoryAI, CategoryHeavyRecompute:
		return true
	}
	return false
}

func (c PremiumCategory) String() string { return string(c) }

// ParseCategory maps a string to a category. Unknown values fall back to
// CategoryOther; the caller is expected to log the misconfiguration rather
// than fail the request.
func ParseCategory(s string) (PremiumCategory, bool) {
	switch PremiumCategory(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryExports:
		return CategoryExports, true
	case CategoryAI:
		return CategoryAI, true
	case CategoryHeavyRecompute:
		return CategoryHeavyRecompute, true
	case CategoryOther:
		return CategoryOther, true
	}
	return CategoryOther, false
}

// IsWriteMethod reports whether the HTTP method mutates state.
func IsWriteMethod(method string) bool {
	switch strings.ToUpper(method) {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}

// CategoryFromPath infers a category from a request path. It is a
// best-effort fallback for routes that never declared a category
// explicitly; explicit tagging always wins.
//
// When a path matches several keyword groups the fixed priority
// exports > ai > heavy_recompute applies, independent of keyword position.
func CategoryFromPath(path string) PremiumCategory {
	p := strings.ToLower(path)

	if strings.Contains(p, "/export") || strings.Contains(p, "/download") {
		return CategoryExports
	}
	if strings.Contains(p, "/ai") || strings.Contains(p, "/insight") || strings.Contains(p, "/recommendation") {
		return CategoryAI
	}
	if strings.Contains(p, "/backfill") || strings.Contains(p, "/attribution") || strings.Contains(p, "/recompute") {
		return CategoryHeavyRecompute
	}
	return CategoryOther
}
