package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mu6m/better-datafy/internal/core/rag"
)

const (
	// DefaultFetchTimeout はHTTP取得のデフォルトタイムアウト
	DefaultFetchTimeout = 15 * time.Second
	// DefaultMaxBodyBytes はレスポンスボディ読み取りの上限
	DefaultMaxBodyBytes = 2 << 20 // 2MiB
)

var (
	// schemePattern は既知のURLスキームを検出します
	schemePattern = regexp.MustCompile(`^https?://`)
	// hostPattern はスキームなしでもホスト名らしいトークンを検出します
	hostPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*(\.[a-zA-Z0-9][a-zA-Z0-9-]*)+(/\S*)?$`)
)

// Resolver は rag.ContentResolver を実装するHTTPコンテンツリゾルバです。
// URLでないソースはリテラルテキストとしてそのまま返します。
type Resolver struct {
	client       *http.Client
	maxBodyBytes int64
}

type resolverOptions struct {
	client       *http.Client
	maxBodyBytes int64
}

// ResolverOption は Resolver のオプション設定
type ResolverOption func(*resolverOptions)

// WithHTTPClient はHTTPクライアントを差し替える
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(o *resolverOptions) {
		o.client = client
	}
}

// WithMaxBodyBytes はレスポンスボディ読み取りの上限を上書きする
func WithMaxBodyBytes(n int64) ResolverOption {
	return func(o *resolverOptions) {
		o.maxBodyBytes = n
	}
}

// NewResolver は新しい Resolver を作成する
func NewResolver(opts ...ResolverOption) *Resolver {
	options := resolverOptions{
		client:       &http.Client{Timeout: DefaultFetchTimeout},
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Resolver{
		client:       options.client,
		maxBodyBytes: options.maxBodyBytes,
	}
}

var _ rag.ContentResolver = (*Resolver)(nil)

// Resolve はソーストークンをプレーンテキストへ解決します。
// 取得に失敗しても error を伝播せず、失敗理由と元のソースを埋め込んだ
// 代替文字列を返します（err は *FetchError）。
func (r *Resolver) Resolve(ctx context.Context, source string) (string, error) {
	url, ok := PromoteToURL(source)
	if !ok {
		// URLでなければリテラルテキストとして扱う
		return source, nil
	}

	text, err := r.fetch(ctx, url)
	if err != nil {
		fetchErr := &rag.FetchError{Source: source, Err: err}
		return Sentinel(source, err), fetchErr
	}
	return text, nil
}

// PromoteToURL はソースがURLらしい場合に取得用URLへ昇格します。
// スキームなしのホスト風トークンには https:// を前置します。
func PromoteToURL(source string) (string, bool) {
	source = strings.TrimSpace(source)
	if schemePattern.MatchString(source) {
		return source, true
	}
	if hostPattern.MatchString(source) {
		return "https://" + source, true
	}
	return "", false
}

// Sentinel は取得失敗時にインデックス可能な代替文字列を返します
func Sentinel(source string, err error) string {
	return fmt.Sprintf("[fetch failed: %v] %s", err, source)
}

// fetch はURLを取得し、マークアップを除去したテキストを返します
func (r *Resolver) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "datafy/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBodyBytes))
	if err != nil {
		return "", err
	}

	return StripMarkup(string(body)), nil
}

// StripMarkup はHTMLからプレーンテキストを抽出します。
// DOMとして解釈するため、属性値やコメントの中身がテキストに混入しません。
// script/style ブロックを除去した後、連続する空白を単一スペースにまとめます。
func StripMarkup(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		// パースできない入力はそのまま空白だけ正規化して返す
		return strings.Join(strings.Fields(markup), " ")
	}

	doc.Find("script, style").Remove()

	return strings.Join(strings.Fields(doc.Text()), " ")
}
