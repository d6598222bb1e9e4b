package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/apperror"
)

func TestNewPageResponse(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		total      int
		totalPages int
		hasNext    bool
	}{
		{name: "empty", page: 1, size: 20, total: 0, totalPages: 0, hasNext: false},
		{name: "exact fit", page: 1, size: 5, total: 10, totalPages: 2, hasNext: true},
		{name: "last partial page", page: 3, size: 5, total: 11, totalPages: 3, hasNext: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPageResponse[string](nil, tt.page, tt.size, tt.total)
			assert.NotNil(t, p.Items)
			assert.Equal(t, tt.totalPages, p.TotalPages)
			assert.Equal(t, tt.hasNext, p.HasNext)
		})
	}
}

func TestError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{name: "coded", err: apperror.New(http.StatusNotFound, "court not found"), status: http.StatusNotFound, body: "court not found"},
		{name: "wrapped coded", err: apperror.Wrap(assert.AnError, http.StatusConflict, "taken"), status: http.StatusConflict, body: "taken"},
		{name: "plain", err: assert.AnError, status: http.StatusInternalServerError, body: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			Error(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var out ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
			assert.Equal(t, tt.body, out.Error)
		})
	}
}
