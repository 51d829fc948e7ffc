package common

import (
	"net/url"
	"strconv"
	"strings"
)

// Page captures normalised pagination parameters.
type Page struct {
	Number  int
	PerPage int
}

// Offset returns the SQL offset for the page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.PerPage
}

// ParsePage reads page/per_page query values with defaults and an upper bound.
func ParsePage(values url.Values, defaultPerPage, maxPerPage int) Page {
	page := Page{Number: 1, PerPage: defaultPerPage}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page.Number = n
		}
	}
	if v := strings.TrimSpace(values.Get("per_page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page.PerPage = n
		}
	}
	if page.PerPage < 1 {
		page.PerPage = defaultPerPage
	}
	if maxPerPage > 0 && page.PerPage > maxPerPage {
		page.PerPage = maxPerPage
	}
	return page
}
