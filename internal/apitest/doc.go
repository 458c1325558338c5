// Package apitest はテスト用のインメモリAPIサーバーを提供する。
//
// リソース管理APIと同じエンドポイントとエンベロープ形式を持ち、
// HS256のJWTで保護されたエンドポイントは不正なトークンに401を返す。
// クライアント側パッケージのテストから使用する。
package apitest
