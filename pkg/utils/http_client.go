package utils

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// NewHTTPClient 创建外部网关统一使用的 Resty 客户端
// 仅对网络错误和 5xx 重试，4xx 直接返回
func NewHTTPClient(timeout time.Duration, retryCount int) *resty.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("User-Agent", "PhoneBay/1.0").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() >= http.StatusInternalServerError
		})
}
