// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageはレスポンスのerrorフィールドとしてそのままクライアントに返される。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, cart, menu, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation       = "VALIDATION_FAILED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNonGmailAddress  = "NON_GMAIL_ADDRESS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeMenuItemNotFound = "MENU_ITEM_NOT_FOUND"
	ErrCodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnavailable      = "SERVICE_UNAVAILABLE"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewValidationError は必須項目欠落などの入力エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
	}
}

// NewInvalidRequestError はリクエストボディを解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Invalid JSON body",
		Category: "validation",
	}
}

// NewNonGmailAddressError はGmail以外のアドレスでのログインを拒否するエラーを生成する。
func NewNonGmailAddressError() *APIError {
	return &APIError{
		Code:     ErrCodeNonGmailAddress,
		Message:  "Please use your Gmail address",
		Category: "validation",
	}
}

// NewUnauthorizedError はトークンが無効または欠落している場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Invalid or missing token",
		Category: "auth",
	}
}

// NewForbiddenError はトークンのユーザーとリクエストのuserIdが異なる場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Token does not match userId",
		Category: "auth",
	}
}

// NewMenuItemNotFoundError はメニュー項目未検出エラーを生成する。
func NewMenuItemNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeMenuItemNotFound,
		Message:  fmt.Sprintf("Menu item not found: %d", id),
		Category: "menu",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
	}
}

// NewUnavailableError はデータベース等の依存先に到達できない場合のエラーを生成する。
func NewUnavailableError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUnavailable,
		Message:  message,
		Category: "system",
	}
}
