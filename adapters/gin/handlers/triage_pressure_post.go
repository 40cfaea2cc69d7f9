package handlers

import (
	"net/http"

	"github.com/PaulFidika/paywallkit/adapters/ginutil"
	"github.com/PaulFidika/paywallkit/triage"
	"github.com/gin-gonic/gin"
)

// HandleTriagePressurePOST evaluates a blood pressure reading. Mounted behind
// RequireFeature.
func HandleTriagePressurePOST() gin.HandlerFunc {
	return func(c *gin.Context) {
		var r triage.Reading
		if err := c.ShouldBindJSON(&r); err != nil || r.Validate() != nil {
			ginutil.BadRequest(c, "invalid_reading")
			return
		}
		c.JSON(http.StatusOK, triage.EvaluatePressure(r))
	}
}
