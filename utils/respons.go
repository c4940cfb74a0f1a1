package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

type JSONResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Success: code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func RespondPaginated(c *gin.Context, code int, message string, data interface{}, p Pagination) {
	c.JSON(code, JSONResponse{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: &p,
	})
}

// RespondError renders err in the error envelope. Errors that are not
// operational are logged and hidden behind a generic message.
func RespondError(c *gin.Context, err error) {
	appErr := AsAppError(err)
	if appErr.Status >= 500 {
		ErrorLogger.WithFields(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Errorf("request failed: %v", err)
	}
	c.AbortWithStatusJSON(appErr.Status, ErrorResponse{
		Success: false,
		Error:   ErrorBody{Code: appErr.Code, Message: appErr.Message},
	})
}

// GetPagination reads ?page and ?limit with sane defaults.
func GetPagination(c *gin.Context) Pagination {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return Pagination{Page: page, Limit: limit}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// WithTotal fills Total and TotalPages.
func (p Pagination) WithTotal(total int64) Pagination {
	p.Total = total
	p.TotalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return p
}
