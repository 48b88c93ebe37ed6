package repository

import (
	"testing"

	"github.com/mitsuki/nemuri/internal/model"
)

// TestPostgresUserRepo_ImplementsInterface はPostgresUserRepoがUserRepositoryを実装することを検証する。
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresUserRepoがUserRepositoryを満たすことを検証
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// TestPostgresPresenceEventRepo_ImplementsInterface はPostgresPresenceEventRepoが
// PresenceEventRepositoryを実装することを検証する。
func TestPostgresPresenceEventRepo_ImplementsInterface(t *testing.T) {
	var _ PresenceEventRepository = (*PostgresPresenceEventRepo)(nil)
}

// TestDerivedTableRepos_ImplementInterfaces は派生テーブルの各リポジトリが
// インターフェースを実装することを検証する。
func TestDerivedTableRepos_ImplementInterfaces(t *testing.T) {
	var _ OfflineIntervalRepository = (*PostgresOfflineIntervalRepo)(nil)
	var _ SleepWindowRepository = (*PostgresSleepWindowRepo)(nil)
	var _ AnomalyRepository = (*PostgresAnomalyRepo)(nil)
}

// TestStatusValues は正規化ステータスの定数値が正しいことを検証する。
func TestStatusValues(t *testing.T) {
	if model.StatusOnline != "online" {
		t.Errorf("StatusOnline = %q, want %q", model.StatusOnline, "online")
	}
	if model.StatusOffline != "offline" {
		t.Errorf("StatusOffline = %q, want %q", model.StatusOffline, "offline")
	}
	if model.StatusUnknown != "unknown" {
		t.Errorf("StatusUnknown = %q, want %q", model.StatusUnknown, "unknown")
	}
}
