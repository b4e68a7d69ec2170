package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// vendorAccept 签名串中的 accept 固定值（GET 请求 contentType/contentMd5 为空）
const vendorAccept = "application/json"

// VendorClient 厂家开放平台 API 客户端
// 签名模式下按厂家网关的 HMAC-SHA1 方案对每个请求计算 Authorization 头；
// 非签名模式只带 Content-Type/Accept（厂家另一套免认证接口使用）
type VendorClient struct {
	httpClient *resty.Client
	appKey     string
	secret     string
	signed     bool
	logger     *zap.Logger

	// now 可注入，签名测试需要固定时间戳
	now func() time.Time
}

// NewVendorClient 创建签名模式客户端
func NewVendorClient(baseURL, appKey, secret string, logger *zap.Logger) *VendorClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)

	return &VendorClient{
		httpClient: client,
		appKey:     appKey,
		secret:     secret,
		signed:     true,
		logger:     logger,
		now:        time.Now,
	}
}

// NewUnsignedVendorClient 创建非签名模式客户端
func NewUnsignedVendorClient(baseURL string, logger *zap.Logger) *VendorClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)

	return &VendorClient{
		httpClient: client,
		signed:     false,
		logger:     logger,
		now:        time.Now,
	}
}

// Do 执行一次请求并原样返回状态码和响应体
// 非 2xx 不视为错误：厂家把业务失败也放在响应体里，由上层检查；
// 只有传输层失败才返回 err
func (c *VendorClient) Do(ctx context.Context, method, rawURL string) (int, []byte, error) {
	req := c.httpClient.R().SetContext(ctx)

	if c.signed {
		headers, err := c.signRequest(method, rawURL)
		if err != nil {
			return 0, nil, err
		}
		req.SetHeaders(headers)
	} else {
		req.SetHeader("Content-Type", vendorAccept)
		req.SetHeader("Accept", vendorAccept)
	}

	resp, err := req.Execute(method, rawURL)
	if err != nil {
		c.logger.Error("vendor API request failed",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return 0, nil, fmt.Errorf("failed to call vendor API: %w", err)
	}

	return resp.StatusCode(), resp.Body(), nil
}

// signRequest 计算一次请求的签名头
// 厂家网关会用同样的规则重算签名，因此 query 串必须按 key 字典序重排后参与签名
func (c *VendorClient) signRequest(method, rawURL string) (map[string]string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vendor URL: %w", err)
	}

	date := c.now().UTC().Format(http.TimeFormat) // RFC 1123, GMT
	signature := computeSignature(c.secret, method, date, u)

	host := u.Host
	if host == "" {
		if base, err := url.Parse(c.httpClient.BaseURL); err == nil {
			host = base.Host
		}
	}

	return map[string]string{
		"Accept": vendorAccept,
		"Host":   host,
		"x-date": date,
		"Authorization": fmt.Sprintf(
			`hmac id="%s", algorithm="hmac-sha1", headers="x-date", signature="%s"`,
			c.appKey, signature,
		),
	}, nil
}

// computeSignature HMAC-SHA1 签名，base64 编码
// 签名串格式：
//   x-date: {date}\n{method}\n{accept}\n{contentType}\n{contentMd5}\n{pathAndSortedQuery}
// GET 请求 contentType 和 contentMd5 为空串
func computeSignature(secret, method, date string, u *url.URL) string {
	signingString := fmt.Sprintf("x-date: %s\n%s\n%s\n%s\n%s\n%s",
		date, method, vendorAccept, "", "", pathAndSortedQuery(u))

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(signingString))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// pathAndSortedQuery 路径加按 key 字典序重排的 query 串
// url.Values.Encode 本身按 key 排序，保证不同参数顺序的同一请求签名一致
func pathAndSortedQuery(u *url.URL) string {
	query := u.Query().Encode()
	if query == "" {
		return u.Path
	}
	return u.Path + "?" + query
}
