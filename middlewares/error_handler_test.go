package middlewares

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/yeremiapane/restaurant-pos/utils"
)

func TestErrorHandlerRecoversPanics(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/panic", func(c *gin.Context) { panic("nil map") })
	r.GET("/attached", func(c *gin.Context) { _ = c.Error(utils.NewNotFoundError("dish")) })

	w := perform(r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "nil map")

	w = perform(r, http.MethodGet, "/attached", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), utils.CodeNotFound)
}

func TestPaymentRateLimiterIsPerUser(t *testing.T) {
	r := gin.New()
	r.GET("/pay/:user", func(c *gin.Context) {
		if c.Param("user") == "a" {
			c.Set(CtxUserID, uint(1))
		} else {
			c.Set(CtxUserID, uint(2))
		}
	}, PaymentRateLimiter(0.001, 1), func(c *gin.Context) { c.Status(http.StatusCreated) })

	assert.Equal(t, http.StatusCreated, perform(r, http.MethodGet, "/pay/a", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodGet, "/pay/a", "").Code)
	assert.Equal(t, http.StatusCreated, perform(r, http.MethodGet, "/pay/b", "").Code)
}
