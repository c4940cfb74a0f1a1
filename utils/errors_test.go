package utils

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestAsAppError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"app error passes through", NewConflictError("busy").WithCode(CodeTableOccupied), http.StatusConflict, CodeTableOccupied},
		{"wrapped app error", fmt.Errorf("ctx: %w", NewNotFoundError("dish")), http.StatusNotFound, CodeNotFound},
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound, CodeNotFound},
		{"duplicate key", gorm.ErrDuplicatedKey, http.StatusConflict, CodeDuplicate},
		{"foreign key", gorm.ErrForeignKeyViolated, http.StatusConflict, CodeConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			appErr := AsAppError(tc.err)
			assert.Equal(t, tc.status, appErr.Status)
			assert.Equal(t, tc.code, appErr.Code)
		})
	}
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

	RespondError(c, errors.New("dial tcp 10.0.0.1: refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`, w.Body.String())
	assert.True(t, c.IsAborted())
}

func TestGetPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query       string
		page, limit int
	}{
		{"", 1, 20},
		{"?page=3&limit=10", 3, 10},
		{"?page=-1&limit=abc", 1, 20},
		{"?limit=1000", 1, 100},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/orders"+tc.query, nil)
		p := GetPagination(c)
		assert.Equal(t, tc.page, p.Page, tc.query)
		assert.Equal(t, tc.limit, p.Limit, tc.query)
	}

	p := Pagination{Page: 2, Limit: 20}.WithTotal(41)
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 3, p.TotalPages)
}
