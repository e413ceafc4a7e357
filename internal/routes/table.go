// Package routes maps URL paths to page descriptors wrapped in layouts.
package routes

import (
	"errors"
	"fmt"
	"strings"
)

// Layouts.
const (
	DefaultLayout  = "DefaultLayout"
	HomePageLayout = "HomePageLayout"
)

// Pages.
const (
	HomePage          = "Home"
	TestRegistrarPage = "TestRegistrar"
	FavouritesPage    = "Favourites"
	SearchResultsPage = "SearchResults"
	SingleNamePage    = "SingleName"
	AddressPage       = "Address"
	RenewPage         = "Renew"
	NotFoundPage      = "Error404"
)

var ErrInvalidRoute = errors.New("routes: invalid route")

// Route binds a path pattern to a page. Patterns use literal segments, :param
// segments, or a lone * that matches every path. Without Exact, a pattern also
// matches any deeper path.
type Route struct {
	Pattern string
	Exact   bool
	Page    string
	Layout  string
}

type Match struct {
	Route  Route
	Layout string
	Params map[string]string
	Path   string
}

type segment struct {
	literal string
	param   string
}

type compiled struct {
	route    Route
	wildcard bool
	segments []segment
}

// Table resolves paths against routes in declaration order.
type Table struct {
	routes []compiled
}

func NewTable(routes ...Route) (*Table, error) {
	t := &Table{routes: make([]compiled, 0, len(routes))}
	for i, r := range routes {
		c, err := compile(r)
		if err != nil {
			return nil, fmt.Errorf("route[%d]: %w", i, err)
		}
		t.routes = append(t.routes, c)
	}
	return t, nil
}

// DefaultTable returns the application route table.
func DefaultTable() *Table {
	t, err := NewTable(
		Route{Pattern: "/", Exact: true, Page: HomePage, Layout: HomePageLayout},
		Route{Pattern: "/test-registrar", Page: TestRegistrarPage},
		Route{Pattern: "/favourites", Page: FavouritesPage},
		Route{Pattern: "/my-bids", Page: SearchResultsPage},
		Route{Pattern: "/how-it-works", Page: SearchResultsPage},
		Route{Pattern: "/search/:searchTerm", Page: SearchResultsPage},
		Route{Pattern: "/name/:name", Page: SingleNamePage},
		Route{Pattern: "/address/:address/:domainType", Page: AddressPage},
		Route{Pattern: "/address/:address", Page: AddressPage},
		Route{Pattern: "/renew", Page: RenewPage},
		Route{Pattern: "*", Page: NotFoundPage},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// Resolve returns the first route matching path.
func (t *Table) Resolve(path string) (Match, bool) {
	path = normalize(path)
	parts := split(path)
	for _, c := range t.routes {
		params, ok := c.match(parts)
		if !ok {
			continue
		}
		layout := c.route.Layout
		if layout == "" {
			layout = DefaultLayout
		}
		return Match{Route: c.route, Layout: layout, Params: params, Path: path}, true
	}
	return Match{}, false
}

func compile(r Route) (compiled, error) {
	pattern := strings.TrimSpace(r.Pattern)
	if strings.TrimSpace(r.Page) == "" {
		return compiled{}, fmt.Errorf("%w: page is required", ErrInvalidRoute)
	}
	if pattern == "*" {
		return compiled{route: r, wildcard: true}, nil
	}
	if !strings.HasPrefix(pattern, "/") {
		return compiled{}, fmt.Errorf("%w: pattern %q must start with /", ErrInvalidRoute, r.Pattern)
	}
	c := compiled{route: r}
	seen := make(map[string]bool)
	for _, part := range split(pattern) {
		if strings.HasPrefix(part, ":") {
			name := part[1:]
			if name == "" || seen[name] {
				return compiled{}, fmt.Errorf("%w: bad param in %q", ErrInvalidRoute, r.Pattern)
			}
			seen[name] = true
			c.segments = append(c.segments, segment{param: name})
			continue
		}
		if strings.Contains(part, "*") {
			return compiled{}, fmt.Errorf("%w: wildcard must be the whole pattern in %q", ErrInvalidRoute, r.Pattern)
		}
		c.segments = append(c.segments, segment{literal: part})
	}
	return c, nil
}

func (c compiled) match(parts []string) (map[string]string, bool) {
	params := map[string]string{}
	if c.wildcard {
		return params, true
	}
	if len(parts) < len(c.segments) {
		return nil, false
	}
	if c.route.Exact && len(parts) != len(c.segments) {
		return nil, false
	}
	for i, seg := range c.segments {
		if seg.param != "" {
			params[seg.param] = parts[i]
			continue
		}
		if !strings.EqualFold(seg.literal, parts[i]) {
			return nil, false
		}
	}
	return params, true
}

func normalize(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

func split(path string) []string {
	raw := strings.Split(path, "/")
	out := raw[:0]
	for _, p := range raw {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
