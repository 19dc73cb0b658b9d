package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"meal-plan-generator/internal/infrastructure/kv"
	"meal-plan-generator/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultDedupWindow = time.Second

// Deduplication 相同客戶端在 window 內重送的同一個 POST 請求回傳 429
func Deduplication(store kv.Store, window time.Duration) gin.HandlerFunc {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		h := sha256.New()
		h.Write([]byte(c.ClientIP() + ":" + c.Request.URL.Path + ":"))
		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				common.LogError("Failed to read request body", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusBadRequest, common.ErrorResponse{
					Code:    common.ErrCodeInvalidRequest,
					Message: "failed to read request body",
				})
				return
			}
			h.Write(body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		key := "dedup:" + hex.EncodeToString(h.Sum(nil))

		ctx := c.Request.Context()
		if _, seen, err := store.Get(ctx, key); err != nil {
			common.LogWarn("Deduplication lookup failed", zap.Error(err))
		} else if seen {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, common.ErrorResponse{
				Code:    common.ErrCodeTooManyRequests,
				Message: "Request too frequent",
			})
			return
		}
		if err := store.Set(ctx, key, "1", window); err != nil {
			common.LogWarn("Deduplication store failed", zap.Error(err))
		}

		c.Next()
	}
}
