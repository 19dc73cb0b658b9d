package common

import (
	"errors"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"error"`             // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 回傳原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is 以錯誤代碼比對，讓 errors.Is(err, ErrPoolExhausted) 對包裝後的錯誤也成立
func (e *CustomError) Is(target error) bool {
	t, ok := target.(*CustomError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Wrap 以預定義錯誤為模板包裝底層錯誤
func (e *CustomError) Wrap(err error) *CustomError {
	return NewError(e.Code, e.Message, e.Status, err)
}

// WithMessage 以預定義錯誤為模板替換訊息
func (e *CustomError) WithMessage(message string) *CustomError {
	return NewError(e.Code, message, e.Status, e.Err)
}

// AsCustomError 取出錯誤鏈中的 CustomError
func AsCustomError(err error) (*CustomError, bool) {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest  = "INVALID_REQUEST"   // 400
	ErrCodeForbidden       = "FORBIDDEN"         // 403
	ErrCodeNotFound        = "NOT_FOUND"         // 404
	ErrCodeConflict        = "CONFLICT"          // 409
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"     // 504

	// 業務錯誤
	ErrCodeParseFailed      = "PARSE_FAILED"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeGenerationFailed = "GENERATION_FAILED"
	ErrCodePoolExhausted    = "POOL_EXHAUSTED"
	ErrCodeReplaceLimit     = "REPLACE_LIMIT"
	ErrCodeRemoteTimeout    = "REMOTE_TIMEOUT"
	ErrCodeJobNotFound      = "JOB_NOT_FOUND"
	ErrCodeJobNotRunning    = "JOB_NOT_RUNNING"
	ErrCodeJobNotResumable  = "JOB_NOT_RESUMABLE"
	ErrCodeAINotAllowed     = "AI_NOT_ALLOWED"
	ErrCodeQueueFull        = "QUEUE_FULL"
)

// 預定義錯誤
var (
	// 客戶端錯誤
	ErrInvalidRequest  = NewError(ErrCodeInvalidRequest, "無效的請求", http.StatusBadRequest, nil)
	ErrForbidden       = NewError(ErrCodeForbidden, "禁止訪問", http.StatusForbidden, nil)
	ErrNotFound        = NewError(ErrCodeNotFound, "資源不存在", http.StatusNotFound, nil)
	ErrConflict        = NewError(ErrCodeConflict, "資源衝突", http.StatusConflict, nil)
	ErrTooManyRequests = NewError(ErrCodeTooManyRequests, "請求過於頻繁", http.StatusTooManyRequests, nil)

	// 服務器錯誤
	ErrInternalError      = NewError(ErrCodeInternalError, "服務器內部錯誤", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "服務暫時不可用", http.StatusServiceUnavailable, nil)
	ErrGatewayTimeout     = NewError(ErrCodeGatewayTimeout, "網關超時", http.StatusGatewayTimeout, nil)

	// 業務錯誤
	ErrParseFailed      = NewError(ErrCodeParseFailed, "no recipe found in generator output", http.StatusBadGateway, nil)
	ErrValidationFailed = NewError(ErrCodeValidationFailed, "recipe failed validation", http.StatusUnprocessableEntity, nil)
	ErrGenerationFailed = NewError(ErrCodeGenerationFailed, "failed to generate valid recipe", http.StatusBadGateway, nil)
	ErrPoolExhausted    = NewError(ErrCodePoolExhausted, "nothing available for this slot", http.StatusNotFound, nil)
	ErrReplaceLimit     = NewError(ErrCodeReplaceLimit, "free plan allows one replacement per day", http.StatusTooManyRequests, nil)
	ErrRemoteTimeout    = NewError(ErrCodeRemoteTimeout, "took too long, try fewer days", http.StatusGatewayTimeout, nil)
	ErrJobNotFound      = NewError(ErrCodeJobNotFound, "job not found", http.StatusNotFound, nil)
	ErrJobNotRunning    = NewError(ErrCodeJobNotRunning, "job is not running", http.StatusConflict, nil)
	ErrJobNotResumable  = NewError(ErrCodeJobNotResumable, "job cannot be continued", http.StatusConflict, nil)
	ErrAINotAllowed     = NewError(ErrCodeAINotAllowed, "AI generation is not available on this plan", http.StatusForbidden, nil)
	ErrQueueFull        = NewError(ErrCodeQueueFull, "job queue is full", http.StatusServiceUnavailable, nil)
)
