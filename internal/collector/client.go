package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Profile はプラットフォームから取得したユーザープロフィール。
type Profile struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// PresenceClientService はプレゼンスプラットフォームAPIの呼び出しインターフェース。
type PresenceClientService interface {
	// Status はユーザーの現在の生ステータスラベルを取得する。
	Status(ctx context.Context, userID int64) (string, error)

	// Profile はユーザーのプロフィールを取得する。
	Profile(ctx context.Context, userID int64) (*Profile, error)
}

// Client はプレゼンスプラットフォームのRESTクライアント。
// SSRF防止機能付きのHTTPクライアントを受け取り、Bearerトークンで認証する。
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// tokenが空の場合はAuthorizationヘッダを付与しない。
func NewClient(httpClient *http.Client, baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger,
	}
}

// Status はユーザーの現在の生ステータスラベルを取得する。
func (c *Client) Status(ctx context.Context, userID int64) (string, error) {
	var result struct {
		Status string `json:"status"`
	}
	url := fmt.Sprintf("%s/users/%d/status", c.baseURL, userID)
	if err := c.getJSON(ctx, url, &result); err != nil {
		return "", err
	}
	return result.Status, nil
}

// Profile はユーザーのプロフィールを取得する。
func (c *Client) Profile(ctx context.Context, userID int64) (*Profile, error) {
	var result Profile
	url := fmt.Sprintf("%s/users/%d", c.baseURL, userID)
	if err := c.getJSON(ctx, url, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// getJSON はGETリクエストを実行しレスポンスJSONをデコードする。
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Nemuri/1.0 Presence Monitor")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("プレゼンスAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("プレゼンスAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return nil
}
