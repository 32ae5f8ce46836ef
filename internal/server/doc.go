// Package server は、可視光・赤外線カメラを操作するHTTP APIを提供します。
//
// このパッケージは、rig.Rigの操作をginのルーティングに対応付け、
// エラー種別をHTTPステータスに変換して返します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - デバイスの列挙・オープン・ログイン・パラメータ設定
//   - キャプチャと温度行列の一括変換
//   - 保存設定の取得・更新・初期化
//   - プレビューの配信（MJPEG / WebSocket）
//
// 仕様:
//   - ルーティングはgin、WebSocketはgorilla/websocketを使用
//   - 一部の出力だけ失敗したキャプチャは207を返す
//   - シャットダウン時に全デバイスを解放する
package server
