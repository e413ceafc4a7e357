// Package gate holds back the page tree while the active client carries a recorded
// provisioning error.
package gate

import (
	"net/http"

	"github.com/danmuck/namegate/internal/client"
	"github.com/danmuck/namegate/internal/provider"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// NetworkErrorView is the view name rendered in place of the page tree.
const NetworkErrorView = "NetworkError"

// Middleware aborts with the network-error view when the request's client holds an
// error record. A failing error lookup lets the request through.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		dc, ok := provider.FromContext(c)
		if !ok {
			c.Next()
			return
		}
		resp, err := dc.Query(c.Request.Context(), client.Request{Operation: client.GetErrors})
		if err != nil {
			log.Warn().Err(err).Str("client", dc.ID()).Msg("gate_error_lookup_failed")
			c.Next()
			return
		}
		if message := client.ErrorMessage(resp); message != "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"view":    NetworkErrorView,
				"message": message,
			})
			return
		}
		c.Next()
	}
}
