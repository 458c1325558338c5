package notification

import "time"

// DefaultDuration は表示時間が指定されなかった通知の表示時間。
const DefaultDuration = 5 * time.Second

// Type は通知の種類。
type Type string

const (
	// TypeSuccess は操作の成功を表す。
	TypeSuccess Type = "success"
	// TypeError は操作の失敗を表す。
	TypeError Type = "error"
	// TypeWarning は注意を促す通知を表す。
	TypeWarning Type = "warning"
	// TypeInfo は情報提供の通知を表す。
	TypeInfo Type = "info"
)

// Valid は定義済みの種類かどうかを返す。
func (t Type) Valid() bool {
	switch t {
	case TypeSuccess, TypeError, TypeWarning, TypeInfo:
		return true
	default:
		return false
	}
}

// Notification はキューに積まれる1件の通知。
type Notification struct {
	// ID はAddが採番する一意識別子。
	ID string
	// Type は通知の種類。
	Type Type
	// Title は通知の見出し。
	Title string
	// Message は本文。省略可能。
	Message string
	// Duration は自動削除までの時間。0以下の場合はDefaultDurationが使われる。
	Duration time.Duration
}
