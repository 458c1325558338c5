// Package kvstore はセッション情報を永続化するキーバリューストアを提供する。
//
// ブラウザのlocalStorageに相当する同期的な文字列ストアで、
// キー名ごとに1つの文字列値を保持する。SQLiteによる永続実装と、
// テストや一時利用のためのインメモリ実装を持つ。
package kvstore
