// Package cli はresourcectlのコマンドを実装する。
//
// 各コマンドは実行のたびに設定を読み込み、永続ストアからセッションを復元し、
// APIクライアントを組み立てて処理を行う。操作結果は通知キューに積まれ、
// 標準エラー出力に表示される。
package cli
