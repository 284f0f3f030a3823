package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aurelia-labs/companion-backend/internal/requestdata"
)

// callerData pulls the authenticated caller from the request context.
// Every route using it is registered behind RequireAuth, which aborts
// unauthenticated requests first; the nil branch only fires if a route
// is ever wired outside that group.
func callerData(c *gin.Context) (*requestdata.RequestData, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	return rd, true
}
