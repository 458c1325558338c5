// Package api はリソース管理APIの型定義と呼び出しを提供する。
//
// 認証（ログイン・ユーザー登録）、ユーザー、リソースとその変更履歴の
// 各エンドポイントを型付きのメソッドとして公開する。すべての応答は
// {status, message, data} 形式のエンベロープで返される。
package api
