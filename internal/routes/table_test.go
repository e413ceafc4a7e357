package routes

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/danmuck/namegate/internal/testutil/testlog"
)

func TestDefaultTableResolution(t *testing.T) {
	testlog.Start(t)

	table := DefaultTable()
	cases := []struct {
		path   string
		page   string
		layout string
		params map[string]string
	}{
		{"/", HomePage, HomePageLayout, nil},
		{"/name/vitalik.eth", SingleNamePage, DefaultLayout, map[string]string{"name": "vitalik.eth"}},
		{"/name/vitalik.eth/details", SingleNamePage, DefaultLayout, map[string]string{"name": "vitalik.eth"}},
		{"/search/foo", SearchResultsPage, DefaultLayout, map[string]string{"searchTerm": "foo"}},
		{"/address/0xabc/registrant", AddressPage, DefaultLayout, map[string]string{"address": "0xabc", "domainType": "registrant"}},
		{"/address/0xabc", AddressPage, DefaultLayout, map[string]string{"address": "0xabc"}},
		{"/favourites/", FavouritesPage, DefaultLayout, nil},
		{"/Renew", RenewPage, DefaultLayout, nil},
		{"/how-it-works", SearchResultsPage, DefaultLayout, nil},
		{"/nope", NotFoundPage, DefaultLayout, nil},
		{"/name", NotFoundPage, DefaultLayout, nil},
	}
	for _, tc := range cases {
		m, ok := table.Resolve(tc.path)
		if !ok {
			t.Fatalf("%s: expected a match", tc.path)
		}
		if m.Route.Page != tc.page {
			t.Fatalf("%s: expected page %q, got %q", tc.path, tc.page, m.Route.Page)
		}
		if m.Layout != tc.layout {
			t.Fatalf("%s: expected layout %q, got %q", tc.path, tc.layout, m.Layout)
		}
		for k, v := range tc.params {
			if m.Params[k] != v {
				t.Fatalf("%s: expected param %s=%q, got %q", tc.path, k, v, m.Params[k])
			}
		}
	}
}

func TestFirstMatchWins(t *testing.T) {
	testlog.Start(t)

	table, err := NewTable(
		Route{Pattern: "/a", Page: "First"},
		Route{Pattern: "/a/b", Page: "Second"},
	)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	m, _ := table.Resolve("/a/b")
	if m.Route.Page != "First" {
		t.Fatalf("expected first declared route, got %q", m.Route.Page)
	}
}

func TestTableWithoutWildcardCanMiss(t *testing.T) {
	testlog.Start(t)

	table, err := NewTable(Route{Pattern: "/", Exact: true, Page: HomePage})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	if _, ok := table.Resolve("/elsewhere"); ok {
		t.Fatalf("expected no match")
	}
}

func TestInvalidRoutesRejected(t *testing.T) {
	testlog.Start(t)

	bad := []Route{
		{Pattern: "name", Page: "X"},
		{Pattern: "/name/:", Page: "X"},
		{Pattern: "/a/:id/:id", Page: "X"},
		{Pattern: "/a/*", Page: "X"},
		{Pattern: "/a"},
	}
	for _, r := range bad {
		if _, err := NewTable(r); !errors.Is(err, ErrInvalidRoute) {
			t.Fatalf("%+v: expected ErrInvalidRoute, got %v", r, err)
		}
	}
}

func TestModePath(t *testing.T) {
	testlog.Start(t)

	u, _ := url.Parse("https://app.example/ignored#/name/vitalik.eth?tab=details")
	req := &http.Request{URL: u, Header: http.Header{}}
	if got := ModeHash.Path(req); got != "/name/vitalik.eth" {
		t.Fatalf("unexpected hash path: %q", got)
	}
	if got := ModeHistory.Path(req); got != "/ignored" {
		t.Fatalf("unexpected history path: %q", got)
	}

	param, _ := url.Parse("https://app.example/?route=%2Fsearch%2Fnick")
	if got := ModeHash.Path(&http.Request{URL: param, Header: http.Header{}}); got != "/search/nick" {
		t.Fatalf("unexpected route param path: %q", got)
	}

	bare, _ := url.Parse("https://app.example/renew")
	headed := &http.Request{URL: bare, Header: http.Header{}}
	if got := ModeHash.Path(headed); got != "/renew" {
		t.Fatalf("expected url path without fragment, got %q", got)
	}
	headed.Header.Set(HeaderRouteFragment, "#/favourites")
	if got := ModeHash.Path(headed); got != "/favourites" {
		t.Fatalf("unexpected header fragment path: %q", got)
	}
	if ModeFor(true) != ModeHash || ModeFor(false) != ModeHistory {
		t.Fatalf("unexpected mode selection")
	}
}
