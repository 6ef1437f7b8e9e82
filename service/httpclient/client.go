/*
 * @module service/httpclient/client
 * @description HTTP获取能力封装，提供带重定向跟随的单次GET请求
 * @architecture 适配器模式 - 封装标准HTTP客户端，提供统一的接口
 * @documentReference dev_docs/requirements.md
 * @stateFlow 发起请求 -> 跟随重定向 -> 读取响应体 -> 返回状态码与字节
 * @rules 网络错误与非200状态由调用方区分处理，本层不做重试
 * @dependencies net/http, io
 * @refs service/gtfsrt/snapshot.go
 */

package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher HTTP获取能力接口
type Fetcher interface {
	// Get 发起一次GET请求，跟随重定向，返回状态码与响应体
	Get(ctx context.Context, url string) (int, []byte, error)
}

// HTTPFetcher 基于标准库的Fetcher实现
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher 创建HTTP获取器实例
// 标准库客户端默认跟随最多10次重定向
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Get 发起一次GET请求
func (f *HTTPFetcher) Get(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("构造请求失败: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	return resp.StatusCode, body, nil
}
