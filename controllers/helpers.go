package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-pos/utils"
)

// paramID parses a positive numeric path parameter.
func paramID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, utils.NewValidationError("invalid %s", name)
	}
	return uint(id), nil
}

func queryUint(c *gin.Context, name string) uint {
	id, _ := strconv.ParseUint(c.Query(name), 10, 64)
	return uint(id)
}
