// Package handlers 實作計畫任務、餐位替換與食譜的 HTTP 處理器
package handlers

import (
	"context"
	"errors"
	"net/http"

	"meal-plan-generator/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RespondError 將錯誤轉為 {error, code}；CustomError 使用自己的狀態碼
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)

	if ce, ok := common.AsCustomError(err); ok {
		status := ce.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		c.AbortWithStatusJSON(status, common.ErrorResponse{Code: ce.Code, Message: ce.Message})
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.ErrorResponse{
			Code:    common.ErrCodeRemoteTimeout,
			Message: common.ErrRemoteTimeout.Message,
		})
		return
	}

	common.LogError("Unhandled request error",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", requestid.Get(c)),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, common.ErrorResponse{
		Code:    common.ErrCodeInternalError,
		Message: "Internal server error",
	})
}

// bindJSON 解析請求體，失敗時回應 400
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		RespondError(c, common.ErrInvalidRequest.WithMessage("invalid request body: "+err.Error()))
		return false
	}
	return true
}
