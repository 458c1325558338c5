// Package notification はユーザー向けの一時的な通知キューを提供する。
//
// 通知は追加順に保持され、指定時間（既定5秒）が経過すると自動的に削除される。
// キューの内容は購読者へ同期的に通知される。
package notification
