package clob

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/snipebot/internal/gateway/signing"
	"github.com/betbot/snipebot/pkg/ratelimit"
)

var log = logrus.WithField("module", "clob")

// SignatureType 订单签名类型
const (
	SigTypeEOA    = 0
	SigTypeProxy  = 1
	SigTypeGnosis = 2
)

// Options 客户端配置
type Options struct {
	ClobBaseURL string
	DataBaseURL string
	ChainID     int64
	PrivateKey  *ecdsa.PrivateKey
	Creds       *signing.APICreds // 为空时需先调用 DeriveAPIKey
	Funder      string            // 资金地址（代理钱包）；为空时使用签名者地址
}

// Client Polymarket CLOB REST 客户端
//
// 本层只做单次 HTTP 调用与认证头构造，不做重试——
// 统一的重试策略由上层服务封套负责
type Client struct {
	http    *resty.Client
	data    *resty.Client
	chainID int64
	signer  *ecdsa.PrivateKey
	creds   *signing.APICreds
	funder  string
	sigType int
	limiter *ratelimit.TokenBucket
}

// NewClient 创建 CLOB 客户端
func NewClient(opts Options) *Client {
	newRestClient := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(strings.TrimSuffix(base, "/")).
			SetTimeout(15 * time.Second).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "snipebot/1.0")
	}

	sigType := SigTypeEOA
	funder := opts.Funder
	if funder == "" && opts.PrivateKey != nil {
		funder = signing.AddressFromPrivateKey(opts.PrivateKey).Hex()
	} else if funder != "" {
		// 资金地址与签名地址分离：代理钱包签名类型
		sigType = SigTypeProxy
	}

	return &Client{
		http:    newRestClient(opts.ClobBaseURL),
		data:    newRestClient(opts.DataBaseURL),
		chainID: opts.ChainID,
		signer:  opts.PrivateKey,
		creds:   opts.Creds,
		funder:  funder,
		sigType: sigType,
		// CLOB 公共限频约 10 req/s/IP，留出余量
		limiter: ratelimit.NewTokenBucket(8, 8),
	}
}

// Funder 资金地址
func (c *Client) Funder() string { return c.funder }

// ChainID 链 ID
func (c *Client) ChainID() int64 { return c.chainID }

// HasCreds 是否已持有 L2 凭据
func (c *Client) HasCreds() bool { return c.creds != nil && c.creds.Key != "" }

// SetCreds 注入 L2 凭据（DeriveAPIKey 之后调用）
func (c *Client) SetCreds(creds *signing.APICreds) { c.creds = creds }

// DeriveAPIKey 用 L1 签名派生（或取回）L2 API 凭据
func (c *Client) DeriveAPIKey(ctx context.Context) (*signing.APICreds, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("未配置私钥，无法派生 API 凭据")
	}
	headers, err := signing.CreateL1Headers(c.signer, c.chainID, 0)
	if err != nil {
		return nil, err
	}

	var out struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers.Apply()).
		SetResult(&out).
		Get("/auth/derive-api-key")
	if err := checkResponse(resp, err, "derive-api-key"); err != nil {
		return nil, err
	}
	return &signing.APICreds{Key: out.APIKey, Secret: out.Secret, Passphrase: out.Passphrase}, nil
}

// authedRequest 构建带 L2 认证头的请求
// requestPath 参与 HMAC 计算，必须与实际请求路径一致（不含查询串）
func (c *Client) authedRequest(ctx context.Context, method, requestPath, body string) (*resty.Request, error) {
	if c.signer == nil || c.creds == nil {
		return nil, fmt.Errorf("缺少认证配置（私钥或 API 凭据）")
	}
	headers, err := signing.CreateL2Headers(c.signer, c.creds, method, requestPath, body)
	if err != nil {
		return nil, err
	}
	return c.http.R().SetContext(ctx).SetHeaders(headers.Apply()), nil
}

// wait 限频闸门：所有出站请求先过令牌桶
func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// checkResponse 统一的响应检查
func checkResponse(resp *resty.Response, err error, op string) error {
	if err != nil {
		return errors.Wrapf(err, "clob %s 请求失败", op)
	}
	if resp.IsError() {
		return errors.Errorf("clob %s 返回 %d: %s", op, resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	return nil
}
