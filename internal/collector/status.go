// Package collector はプレゼンスプラットフォームのポーリングによる
// イベント収集機能を提供する。プラットフォームAPIクライアント、
// ステータス正規化、ポーリングループを含む。
package collector

import (
	"github.com/mitsuki/nemuri/internal/model"
)

// プラットフォームが返す生ステータスラベル。
// この2つ以外のラベル（UserStatusRecently等）は全てunknownに正規化される。
const (
	rawStatusOnline  = "ONLINE"
	rawStatusOffline = "OFFLINE"
)

// NormalizeStatus はプラットフォームの生ステータスラベルを正規化する。
// 未知のラベルはunknownとして保存され、パイプラインでは区間の開閉に
// 影響しない中立のイベントとして扱われる。
func NormalizeStatus(raw string) model.Status {
	switch raw {
	case rawStatusOnline:
		return model.StatusOnline
	case rawStatusOffline:
		return model.StatusOffline
	default:
		return model.StatusUnknown
	}
}
