// Package stream はセンサーからのフレーム配信を管理する
//
// FrameBufferはセンサーごとに最新フレームを1枚だけ保持するメールボックスで、
// Sessionはアダプターの非同期コールバックをFrameBufferへの上書きに変換する。
// 配信エラーやフレームの途絶はセッションを止めずにStaleへ遷移させる。
package stream
