package routes

import (
	"net/http"
	"strings"

	"github.com/danmuck/namegate/internal/observability"
	"github.com/gin-gonic/gin"
)

// Mode selects where the route path is read from.
type Mode int

const (
	// ModeHistory routes on the URL path.
	ModeHistory Mode = iota
	// ModeHash routes on the client-side fragment, for builds served from
	// content-addressed storage where every path must load the same document.
	ModeHash
)

// Browsers never send the fragment, so the hash-router shell forwards it in the
// route query parameter or the X-Route-Fragment header.
const (
	RouteParam          = "route"
	HeaderRouteFragment = "X-Route-Fragment"
)

func ModeFor(ipfs bool) Mode {
	if ipfs {
		return ModeHash
	}
	return ModeHistory
}

func (m Mode) String() string {
	if m == ModeHash {
		return "hash"
	}
	return "history"
}

// Path extracts the route path from r. In hash mode a request carrying no fragment
// routes on its URL path.
func (m Mode) Path(r *http.Request) string {
	u := r.URL
	if m != ModeHash {
		return u.Path
	}
	frag := u.Fragment
	if frag == "" {
		frag = u.Query().Get(RouteParam)
	}
	if frag == "" {
		frag = r.Header.Get(HeaderRouteFragment)
	}
	frag = strings.TrimPrefix(strings.TrimSpace(frag), "#")
	if i := strings.IndexByte(frag, '?'); i >= 0 {
		frag = frag[:i]
	}
	if frag == "" {
		return u.Path
	}
	return frag
}

type Dispatcher struct {
	table *Table
	mode  Mode
}

func NewDispatcher(table *Table, mode Mode) *Dispatcher {
	if table == nil {
		table = DefaultTable()
	}
	return &Dispatcher{table: table, mode: mode}
}

// Handle resolves the request to a page descriptor and records a pageview.
func (d *Dispatcher) Handle(c *gin.Context) {
	match, ok := d.table.Resolve(d.mode.Path(c.Request))
	if !ok {
		observability.RecordPageview(NotFoundPage)
		c.JSON(http.StatusNotFound, gin.H{"page": NotFoundPage, "layout": DefaultLayout})
		return
	}
	observability.RecordPageview(match.Route.Page)

	status := http.StatusOK
	if match.Route.Page == NotFoundPage {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{
		"page":   match.Route.Page,
		"layout": match.Layout,
		"params": match.Params,
		"path":   match.Path,
	})
}
