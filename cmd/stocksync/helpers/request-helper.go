package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/craftstock/craftstock/internal"
	"github.com/gin-gonic/gin"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"
)

func InitTestLogging() {
	_ = logger.New("DEVELOPMENT")
}

// AdminUser may trigger maintenance endpoints for any business. Set once at
// startup from ADMIN_USER, before the router starts serving.
var AdminUser = "admin"

func HandleInternalServerError(c *gin.Context, err error) {
	if c == nil {
		panic("HandleInternalServerError: c is nil")
	}
	if err == nil {
		err = errors.New("unknown error")
	}

	erx := internal.SanitizeString(err.Error())
	zap.S().Errorw(
		"Internal server error",
		"error", erx,
	)

	c.JSON(
		http.StatusInternalServerError,
		gin.H{
			"error":       erx,
			"status":      http.StatusInternalServerError,
			"message":     "The server had an internal error.",
			"stack-trace": string(debug.Stack()),
		})
}

func HandleInvalidInputError(c *gin.Context, err error) {
	if c == nil {
		panic("HandleInvalidInputError: c is nil")
	}
	if err == nil {
		err = errors.New("unknown error")
	}
	erx := internal.SanitizeString(err.Error())
	zap.S().Errorw(
		"Invalid input error",
		"error", erx,
	)

	c.JSON(
		http.StatusBadRequest,
		gin.H{
			"error":       erx,
			"status":      http.StatusBadRequest,
			"message":     "You have provided a wrong input. Please check your parameters.",
			"stack-trace": string(debug.Stack()),
		})
}

// CheckIfUserIsAllowed checks if the authenticated user may access data of the
// given business. The admin user may access every business.
func CheckIfUserIsAllowed(c *gin.Context, business string) error {

	user := c.MustGet(gin.AuthUserKey)
	if user != business && user != AdminUser {
		c.AbortWithStatus(http.StatusUnauthorized)
		zap.S().Infof("User %s unauthorized to access %s", user, internal.SanitizeString(business))
		return fmt.Errorf("user %s unauthorized to access %s", user, internal.SanitizeString(business))
	}
	return nil
}

// CheckIfUserIsAdmin guards the maintenance endpoints.
func CheckIfUserIsAdmin(c *gin.Context) error {
	user := c.MustGet(gin.AuthUserKey)
	if user != AdminUser {
		c.AbortWithStatus(http.StatusForbidden)
		zap.S().Infof("User %s is not allowed to run maintenance operations", user)
		return fmt.Errorf("user %v is not allowed to run maintenance operations", user)
	}
	return nil
}
