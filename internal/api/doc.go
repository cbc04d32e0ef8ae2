// Package api 處理 HTTP 請求路由。
//
// REST 端點負責房間的建立與查詢，/ws 則把連線升級後交給 service 中的協定處理器。
package api
