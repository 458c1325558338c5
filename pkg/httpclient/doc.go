// Package httpclient はREST APIを呼び出す認証付きJSONクライアントを提供する。
//
// リクエストごとに永続ストアからトークンを読み出してBearerヘッダーに設定する。
// セッションストアには依存しない。401応答を受けた場合は保存済みの
// トークンとユーザー情報を削除し、ログイン画面への遷移を要求する。
package httpclient
