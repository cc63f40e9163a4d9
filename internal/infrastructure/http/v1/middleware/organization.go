package middleware

import (
	"github.com/gin-gonic/gin"

	"lotcost/internal/core/apperror"
	appctx "lotcost/internal/core/context"
	"lotcost/internal/core/id"
)

// HeaderOrganizationID identifies the organization a request acts for.
const HeaderOrganizationID = "X-Organization-ID"

// Organization middleware reads the organization from the header and puts it
// into the request context. Organizations themselves are managed elsewhere;
// only the ID is validated here.
func Organization() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderOrganizationID)
		if raw == "" {
			_ = c.Error(
				apperror.NewValidation("organization is required").
					WithDetail("header", HeaderOrganizationID),
			)
			c.Abort()
			return
		}

		orgID, err := id.Parse(raw)
		if err != nil || id.IsNil(orgID) {
			_ = c.Error(
				apperror.NewValidation("invalid organization id").
					WithDetail("header", HeaderOrganizationID).
					WithDetail("value", raw),
			)
			c.Abort()
			return
		}

		ctx := appctx.WithOrganization(c.Request.Context(), orgID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
