package collector

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/mitsuki/nemuri/internal/model"
	"github.com/mitsuki/nemuri/internal/repository"
	"github.com/mitsuki/nemuri/internal/security"
)

// IngestMetrics は収集処理のメトリクス記録インターフェース。
// metricsパッケージのCollectorが実装する。
type IngestMetrics interface {
	RecordEventIngested(status model.Status)
	RecordPollError()
}

// nopIngestMetrics はメトリクス未設定時のno-op実装。
type nopIngestMetrics struct{}

func (nopIngestMetrics) RecordEventIngested(model.Status) {}
func (nopIngestMetrics) RecordPollError()                 {}

// Poller はプレゼンスプラットフォームを定期的にポーリングし、
// 生ステータスが前回の観測値から変化したときだけpresence_eventsに追記する。
// イベントは追記専用であり、既存行の更新・削除は行わない。
// 落ちたポーリングは失われる（リプレイしない）。ポーリング間隔より短い
// 状態変化は原理的に観測できないため、取りこぼしは仕様上許容される。
type Poller struct {
	client        PresenceClientService
	userRepo      repository.UserRepository
	eventRepo     repository.PresenceEventRepository
	sanitizer     security.ProfileSanitizerService
	logger        *slog.Logger
	metrics       IngestMetrics
	userTimezones map[int64]string

	// lastRaw はユーザーごとの最後に観測した生ステータス。
	// プロセス再起動後の初回ポーリングではDBの最新イベントから復元する。
	lastRaw map[int64]string
}

// NewPoller はPollerの新しいインスタンスを生成する。metricsはnilを許容する。
func NewPoller(
	client PresenceClientService,
	userRepo repository.UserRepository,
	eventRepo repository.PresenceEventRepository,
	sanitizer security.ProfileSanitizerService,
	userTimezones map[int64]string,
	logger *slog.Logger,
	metrics IngestMetrics,
) *Poller {
	if metrics == nil {
		metrics = nopIngestMetrics{}
	}
	return &Poller{
		client:        client,
		userRepo:      userRepo,
		eventRepo:     eventRepo,
		sanitizer:     sanitizer,
		logger:        logger,
		metrics:       metrics,
		userTimezones: userTimezones,
		lastRaw:       make(map[int64]string),
	}
}

// sortedUserIDs は設定された監視対象ユーザーIDを昇順で返す。
func (p *Poller) sortedUserIDs() []int64 {
	ids := make([]int64, 0, len(p.userTimezones))
	for id := range p.userTimezones {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EnsureUsers は設定された全ユーザーのusers行を作成し（冪等）、
// ベストエフォートでプロフィールを補完する。
// プロフィール取得・更新の失敗はログに残すだけで処理を継続する。
func (p *Poller) EnsureUsers(ctx context.Context) error {
	for _, id := range p.sortedUserIDs() {
		user := &model.User{
			ID:       id,
			Timezone: p.userTimezones[id],
		}
		if err := p.userRepo.Ensure(ctx, user); err != nil {
			return err
		}

		profile, err := p.client.Profile(ctx, id)
		if err != nil {
			p.logger.Warn("プロフィールの取得に失敗しました",
				slog.Int64("user_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}

		username := p.sanitizer.Sanitize(profile.Username)
		fullName := p.sanitizer.Sanitize(profile.FullName)
		if err := p.userRepo.UpdateProfile(ctx, id, username, fullName); err != nil {
			p.logger.Warn("プロフィールの更新に失敗しました",
				slog.Int64("user_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Start はポーリングループを起動する。
// 起動直後に1回実行し、以降はinterval間隔で実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("プレゼンス収集を開始しました",
		slog.Duration("interval", interval),
		slog.Int("user_count", len(p.userTimezones)),
	)

	p.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("プレゼンス収集を停止しました")
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce は全監視対象ユーザーを1回ポーリングする。
// 個別ユーザーの失敗はログとメトリクスに記録して次のユーザーへ進む。
// 失敗したユーザーのlastRawは更新しないため、次回ティックで再評価される。
func (p *Poller) RunOnce(ctx context.Context) {
	for _, id := range p.sortedUserIDs() {
		if err := p.pollUser(ctx, id); err != nil {
			p.metrics.RecordPollError()
			p.logger.Error("ユーザーのポーリングに失敗しました",
				slog.Int64("user_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

// pollUser は1ユーザーのステータスを取得し、遷移があればイベントを追記する。
func (p *Poller) pollUser(ctx context.Context, userID int64) error {
	raw, err := p.client.Status(ctx, userID)
	if err != nil {
		return err
	}

	last, seen := p.lastRaw[userID]
	if !seen {
		// 再起動直後: DBの最新イベントから前回観測値を復元する
		latest, err := p.eventRepo.FindLatestByUser(ctx, userID)
		if err != nil {
			return err
		}
		if latest != nil {
			last = latest.RawStatus
			seen = true
		}
	}

	if seen && raw == last {
		p.lastRaw[userID] = raw
		return nil
	}

	status := NormalizeStatus(raw)
	ev := &model.PresenceEvent{
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		RawStatus: raw,
		Status:    status,
	}
	if err := p.eventRepo.Append(ctx, ev); err != nil {
		return err
	}

	p.metrics.RecordEventIngested(status)
	p.lastRaw[userID] = raw

	p.logger.Info("プレゼンス遷移を記録しました",
		slog.Int64("user_id", userID),
		slog.String("raw_status", raw),
		slog.String("normalized_status", string(status)),
	)

	return nil
}
