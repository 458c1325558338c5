// Package session はログイン状態を保持するセッションストアを提供する。
//
// Storeは「誰がログインしているか」の唯一の情報源であり、
// 永続キーバリューストアと同期し、任意の数の購読者から観測できる。
//
// 状態遷移:
//
//	{Loading: true, Initialized: false}
//	  -- Initialize（1回だけ） --> ログイン済み or 未ログイン（Initialized: true）
//	  -- Login / Logout（任意の回数・順序） --> 同じ2種類の状態
//
// 永続化の失敗はログに記録するだけで呼び出し元には返さない。
// 永続化できなくてもメモリ上のセッション状態は更新される。
package session
