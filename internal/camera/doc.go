// Package camera は可視光カメラと赤外線カメラのベンダーSDKを共通のインターフェースで扱う
//
// # 責務
// - ベンダーSDKの契約（VisibleSDK / InfraredSDK）の定義
// - SDKをAdapter / ThermalAdapterとして包み、状態遷移を管理する
// - パラメータの範囲検証（範囲外の値はSDKに渡さない）
// - エラー種別（ErrorKind）とベンダーステータスコードの保持
//
// # 状態遷移
//
//	可視光: Closed → Opened → Streaming → Opened → Closed
//	赤外線: LoggedOut → LoggingIn → LoggedIn → Opened → Streaming → Opened → LoggedIn → LoggedOut
//
// 現在の状態から許可されない遷移はErrInvalidStateを返し、状態は変化しない。
// Closeは配信停止を、Logoutはクローズを含む。
//
// # 並行性
// フレームはSDKが所有するゴルーチンからFrameSinkに配信される。
// アダプター内部のロックは配信経路では取得しない。
package camera
