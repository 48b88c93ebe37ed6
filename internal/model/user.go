// Package model はドメインモデルを定義する。
package model

// User は監視対象ユーザーを表す。
// user_idは外部プラットフォーム上の安定したIDをそのまま使用する。
// 行の作成・更新はコレクターが行い、パイプラインからは読み取り専用。
type User struct {
	ID       int64
	Username string
	FullName string
	Timezone string // IANAタイムゾーン名（例: "Asia/Tokyo"）
}
