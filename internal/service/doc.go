// Package service 實作協作畫布的 session 伺服器。
//
// Registry 追蹤每條連線加入了哪些房間，RoomDirectory 快取房主，
// Moderation 保存每個房間的封鎖名單，Handler 則是逐則處理入站訊息的協定狀態機：
// 驗證、修改狀態、寫入儲存，最後廣播給房間成員。
// 所有共享狀態都是行程內的，重啟後由重新連線的客戶端重建。
package service
