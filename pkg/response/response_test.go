package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"splatchain-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(requestID string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if requestID != "" {
		c.Set(CtxRequestID, requestID)
	}
	return c, w
}

func TestSuccessEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		write  func(*gin.Context, any)
		status int
	}{
		{"ok", OK, http.StatusOK},
		{"created", Created, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext("req-1")
			tt.write(c, map[string]string{"address": "abc"})

			assert.Equal(t, tt.status, w.Code)

			var resp SuccessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "req-1", resp.RequestID)
			assert.NotEmpty(t, resp.Timestamp)
			assert.Equal(t, map[string]any{"address": "abc"}, resp.Data)
		})
	}
}

func TestError_AppError(t *testing.T) {
	c, w := newContext("req-2")

	Error(c, apperror.ErrInsufficientBalance(100, 500))

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "LED_006", c.GetString(CtxErrorCode))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "LED_006", resp.ErrorCode)
	assert.Equal(t, "Insufficient balance in wallet", resp.Message)
	assert.Equal(t, float64(100), resp.Details["balance"])
	assert.Equal(t, "req-2", resp.RequestID)
}

func TestError_WrappedAppError(t *testing.T) {
	c, w := newContext("")

	Error(c, fmt.Errorf("outer: %w", apperror.ErrAuthorizationDenied("use force", true)))

	assert.Equal(t, http.StatusForbidden, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "LED_004", resp.ErrorCode)
	assert.Equal(t, true, resp.Details["shared"])
}

func TestError_UnknownErrorIsMasked(t *testing.T) {
	c, w := newContext("")

	Error(c, fmt.Errorf("open wallets.csv: permission denied"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "permission denied")
	require.Len(t, c.Errors, 1)
	assert.EqualError(t, c.Errors.Last().Err, "open wallets.csv: permission denied")

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, apperror.CodeInternal, resp.ErrorCode)
	assert.Equal(t, "Internal server error", resp.Message)
}

func TestRequestID_MintedOnceWhenMissing(t *testing.T) {
	c, w := newContext("")

	OK(c, nil)

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, c.GetString(CtxRequestID))
}
