package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cdi-map/internal/logger"
)

// Fetcher：按相对或绝对 URL 读取资源原始字节
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FetcherFunc：函数适配 Fetcher（测试与组合使用）
type FetcherFunc func(ctx context.Context, ref string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, ref string) ([]byte, error) { return f(ctx, ref) }

// maxBody：单个资源的读取上限
const maxBody = 256 << 20

// 文档注释：HTTP 拉取器
// 背景：相对 URL 以 base 解析；非 2xx 返回 StatusError。
// 约束：响应体上限 256MB；超时由 client 控制。
type HTTPFetcher struct {
	base   *url.URL
	client *http.Client
}

func NewHTTPFetcher(base string, client *http.Client) (*HTTPFetcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("source: bad base url: %w", err)
	}
	if u.Path != "" && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{base: u, client: client}, nil
}

// Resolve：计算资源的绝对地址
func (h *HTTPFetcher) Resolve(ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return h.base.ResolveReference(r).String(), nil
}

func (h *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	target, err := h.Resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("cache-control", "no-store")
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: target, Status: resp.StatusCode}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	logger.L().Debug("fetch_http_ok", "url", target, "bytes", len(b))
	return b, nil
}

// 文档注释：本地目录拉取器
// 背景：开发与离线校验时直接读取数据目录；ref 按斜杠路径解释并限制在 root 之内。
type DirFetcher struct {
	root string
}

func NewDirFetcher(root string) *DirFetcher {
	if root == "" {
		root = "."
	}
	return &DirFetcher{root: root}
}

func (d *DirFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "" || u.Host != "" {
		return nil, fmt.Errorf("source: dir fetcher cannot load %q", ref)
	}
	clean := path.Clean("/" + u.Path)
	fp := filepath.Join(d.root, filepath.FromSlash(clean))
	b, err := os.ReadFile(fp)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
	}
	return b, err
}

// 文档注释：按环境变量构建拉取链
// 约束：DATA_BASE_URL 非空时走 HTTP，否则读取 DATA_DIR；FETCH_TIMEOUT_S 为 HTTP 超时秒数。
func NewFromEnv() (Fetcher, error) {
	timeout := 10 * time.Second
	if s := os.Getenv("FETCH_TIMEOUT_S"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}
	if base := os.Getenv("DATA_BASE_URL"); base != "" {
		return NewHTTPFetcher(base, &http.Client{Timeout: timeout})
	}
	dir := os.Getenv("DATA_DIR")
	if dir == "" {
		dir = "."
	}
	return NewDirFetcher(dir), nil
}
