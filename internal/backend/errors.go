package backend

import (
	"errors"
	"fmt"
	"strings"
)

// BackendError 后端调用错误类型
type BackendError struct {
	Code       int    // 错误码
	Message    string // 错误消息
	StatusCode int    // HTTP状态码（协议错误时有效）
	Body       string // 响应体片段（已脱敏）
}

// Error 实现error接口
func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend error (code=%d, status=%d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey  = 2001 // API密钥缺失或无效
	ErrCodeInvalidRequest = 2002 // 无效的请求
	ErrCodeNetworkError   = 2003 // 网络连接错误
	ErrCodeServerError    = 2004 // 服务端错误（非2xx）
	ErrCodeTimeout        = 2005 // 请求超时
	ErrCodeBadPayload     = 2006 // 响应不是有效JSON
	ErrCodeEmptyPrompt    = 2007 // 提示词为空
)

// NewBackendError 创建新的后端错误
func NewBackendError(code int, message string) *BackendError {
	return &BackendError{Code: code, Message: message}
}

// IsTimeout 判断错误是否为可重试的超时错误
func IsTimeout(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		if be.Code == ErrCodeTimeout {
			return true
		}
	}
	type timeouter interface{ Timeout() bool }
	var te timeouter
	if errors.As(err, &te) && te.Timeout() {
		return true
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// redactSecret 将诊断文本中的密钥替换为掩码
func redactSecret(text, secret string) string {
	if secret == "" {
		return text
	}
	return strings.ReplaceAll(text, secret, "****")
}
