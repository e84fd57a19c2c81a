package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"phonebay/internal/config"
	"phonebay/pkg/utils"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// SSLCOMMERZ 域名
const (
	SSLCommerzSandboxURL = "https://sandbox.sslcommerz.com"
	SSLCommerzLiveURL    = "https://securepay.sslcommerz.com"
)

// 验证接口认可的状态
const (
	sslValid     = "VALID"
	sslValidated = "VALIDATED"
)

// PaymentGateway 支付网关接口
type PaymentGateway interface {
	// InitSession 创建支付会话，返回收银台地址
	InitSession(ctx context.Context, req *SessionRequest) (*SessionResult, error)
	// Validate 通过 val_id 向网关确认支付结果
	Validate(ctx context.Context, valID string) (*PaymentValidation, error)
}

// SessionRequest 创建会话参数
type SessionRequest struct {
	TranID      string
	Amount      decimal.Decimal
	Currency    string
	ProductName string
	NumOfItems  int

	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	CustomerCity    string

	// EMIMonths > 0 时开启网关分期
	EMIMonths int
}

// SessionResult 会话结果
type SessionResult struct {
	GatewayURL string
	SessionKey string
	Raw        map[string]interface{}
}

// PaymentValidation 验证结果
type PaymentValidation struct {
	Status         string
	TranID         string
	ValID          string
	Amount         decimal.Decimal
	Currency       string
	BankTranID     string
	CardType       string
	EMIInstalments int
	Raw            map[string]interface{}
}

// Valid 网关确认支付有效
func (v *PaymentValidation) Valid() bool {
	return v.Status == sslValid || v.Status == sslValidated
}

// ==================== SSLCOMMERZ 客户端 ====================

type sslCommerzClient struct {
	client *resty.Client
	cfg    config.SSLCommerzConfig
}

// NewSSLCommerzClient 创建 SSLCOMMERZ 客户端，未配置 store id 返回 nil
func NewSSLCommerzClient(cfg config.SSLCommerzConfig) PaymentGateway {
	if cfg.StoreID == "" {
		return nil
	}
	base := cfg.BaseURL
	if base == "" {
		base = SSLCommerzLiveURL
		if cfg.Sandbox {
			base = SSLCommerzSandboxURL
		}
	}
	return &sslCommerzClient{
		client: utils.NewHTTPClient(cfg.Timeout, 1).SetBaseURL(strings.TrimRight(base, "/")),
		cfg:    cfg,
	}
}

type sslSessionResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

func (c *sslCommerzClient) InitSession(ctx context.Context, req *SessionRequest) (*SessionResult, error) {
	form := map[string]string{
		"store_id":         c.cfg.StoreID,
		"store_passwd":     c.cfg.StorePassword,
		"total_amount":     req.Amount.StringFixed(2),
		"currency":         req.Currency,
		"tran_id":          req.TranID,
		"success_url":      c.cfg.SuccessURL,
		"fail_url":         c.cfg.FailURL,
		"cancel_url":       c.cfg.CancelURL,
		"ipn_url":          c.cfg.IPNURL,
		"cus_name":         req.CustomerName,
		"cus_email":        req.CustomerEmail,
		"cus_phone":        req.CustomerPhone,
		"cus_add1":         req.CustomerAddress,
		"cus_city":         req.CustomerCity,
		"cus_country":      "Bangladesh",
		"shipping_method":  "Courier",
		"ship_name":        req.CustomerName,
		"ship_add1":        req.CustomerAddress,
		"ship_city":        req.CustomerCity,
		"ship_country":     "Bangladesh",
		"num_of_item":      strconv.Itoa(req.NumOfItems),
		"product_name":     req.ProductName,
		"product_category": "Mobile",
		"product_profile":  "physical-goods",
		"emi_option":       "0",
	}
	if req.EMIMonths > 0 {
		form["emi_option"] = "1"
		form["emi_max_inst_option"] = strconv.Itoa(req.EMIMonths)
		form["emi_selected_inst"] = strconv.Itoa(req.EMIMonths)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post("/gwprocess/v4/api.php")
	if err != nil {
		return nil, fmt.Errorf("sslcommerz 请求失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("sslcommerz HTTP %d", resp.StatusCode())
	}

	var out sslSessionResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("sslcommerz 响应解析失败: %w", err)
	}
	if !strings.EqualFold(out.Status, "SUCCESS") || out.GatewayPageURL == "" {
		reason := out.FailedReason
		if reason == "" {
			reason = "status " + out.Status
		}
		return nil, errors.New("sslcommerz: " + reason)
	}
	return &SessionResult{
		GatewayURL: out.GatewayPageURL,
		SessionKey: out.SessionKey,
		Raw:        rawMap(resp.Body()),
	}, nil
}

type sslValidationResponse struct {
	Status        string `json:"status"`
	TranID        string `json:"tran_id"`
	ValID         string `json:"val_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	BankTranID    string `json:"bank_tran_id"`
	CardType      string `json:"card_type"`
	EMIInstalment string `json:"emi_instalment"`
}

func (c *sslCommerzClient) Validate(ctx context.Context, valID string) (*PaymentValidation, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"val_id":       valID,
			"store_id":     c.cfg.StoreID,
			"store_passwd": c.cfg.StorePassword,
			"format":       "json",
		}).
		Get("/validator/api/validationserverAPI.php")
	if err != nil {
		return nil, fmt.Errorf("sslcommerz 验证请求失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("sslcommerz 验证 HTTP %d", resp.StatusCode())
	}

	var out sslValidationResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("sslcommerz 验证响应解析失败: %w", err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(out.Amount))
	if err != nil && out.Amount != "" {
		return nil, fmt.Errorf("sslcommerz 金额格式错误: %q", out.Amount)
	}
	inst, _ := strconv.Atoi(out.EMIInstalment)

	return &PaymentValidation{
		Status:         strings.ToUpper(out.Status),
		TranID:         out.TranID,
		ValID:          out.ValID,
		Amount:         amount,
		Currency:       out.Currency,
		BankTranID:     out.BankTranID,
		CardType:       out.CardType,
		EMIInstalments: inst,
		Raw:            rawMap(resp.Body()),
	}, nil
}

// rawMap 原始响应，解析失败返回 nil
func rawMap(body []byte) map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		return nil
	}
	return m
}
