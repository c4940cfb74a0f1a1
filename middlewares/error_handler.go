package middlewares

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-pos/utils"
)

// ErrorHandler recovers panics and renders the last error a handler attached
// with c.Error when nothing has been written yet.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				utils.ErrorLogger.WithField("stack", string(debug.Stack())).Errorf("panic: %v", r)
				utils.RespondError(c, fmt.Errorf("panic: %v", r))
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			utils.RespondError(c, c.Errors.Last().Err)
		}
	}
}
