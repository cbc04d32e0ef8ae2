// Package middleware 提供 HTTP 請求處理的 Gin 中間件。
//
// 目前包含 JWT 身分驗證與請求日誌。
package middleware
