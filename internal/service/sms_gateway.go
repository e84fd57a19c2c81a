package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"phonebay/internal/config"
	"phonebay/pkg/utils"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// 短信网关
const (
	SMSProviderBulkSMSBD   = "bulksmsbd"
	SMSProviderSSLWireless = "ssl_wireless"
	// SMSProviderDisabled 未启用短信时只记录日志
	SMSProviderDisabled = "disabled"
)

// SMSGateway 短信网关接口
type SMSGateway interface {
	Name() string
	// Send 发送一条短信，phone 为 880 开头的 13 位号码
	Send(ctx context.Context, phone, message string) (*GatewayResult, error)
}

// GatewayResult 网关返回
type GatewayResult struct {
	MessageID string
	Raw       string
}

// NewSMSGateway 按配置创建网关，未配置返回 nil
func NewSMSGateway(cfg config.SMSGatewayConfig) (SMSGateway, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	client := utils.NewHTTPClient(cfg.Timeout, cfg.RetryCount).SetBaseURL(cfg.BaseURL)

	switch cfg.Provider {
	case SMSProviderBulkSMSBD:
		return &bulkSMSBDGateway{client: client, cfg: cfg}, nil
	case SMSProviderSSLWireless:
		return &sslWirelessGateway{client: client, cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("不支持的短信网关: %s", cfg.Provider)
	}
}

// ==================== BulkSMSBD ====================

type bulkSMSBDGateway struct {
	client *resty.Client
	cfg    config.SMSGatewayConfig
}

type bulkSMSBDResponse struct {
	ResponseCode   int    `json:"response_code"`
	MessageID      any    `json:"message_id"`
	SuccessMessage string `json:"success_message"`
	ErrorMessage   string `json:"error_message"`
}

func (g *bulkSMSBDGateway) Name() string { return SMSProviderBulkSMSBD }

func (g *bulkSMSBDGateway) Send(ctx context.Context, phone, message string) (*GatewayResult, error) {
	var out bulkSMSBDResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"api_key":  g.cfg.APIKey,
			"type":     "text",
			"number":   phone,
			"senderid": g.cfg.SenderID,
			"message":  message,
		}).
		SetResult(&out).
		Post("/api/smsapi")
	if err != nil {
		return nil, fmt.Errorf("bulksmsbd 请求失败: %w", err)
	}
	raw := resp.String()
	if resp.IsError() {
		return nil, fmt.Errorf("bulksmsbd HTTP %d: %s", resp.StatusCode(), raw)
	}
	// 202 = 提交成功
	if out.ResponseCode != 202 {
		msg := out.ErrorMessage
		if msg == "" {
			msg = "response_code " + strconv.Itoa(out.ResponseCode)
		}
		return nil, errors.New("bulksmsbd: " + msg)
	}

	id := ""
	if out.MessageID != nil {
		id = fmt.Sprint(out.MessageID)
	}
	return &GatewayResult{MessageID: id, Raw: raw}, nil
}

// ==================== SSL Wireless ====================

type sslWirelessGateway struct {
	client *resty.Client
	cfg    config.SMSGatewayConfig
}

type sslWirelessResponse struct {
	Status       string `json:"status"`
	StatusCode   int    `json:"status_code"`
	ErrorMessage string `json:"error_message"`
	SMSInfo      []struct {
		SMSStatus   string `json:"sms_status"`
		ReferenceID string `json:"reference_id"`
	} `json:"smsinfo"`
}

func (g *sslWirelessGateway) Name() string { return SMSProviderSSLWireless }

func (g *sslWirelessGateway) Send(ctx context.Context, phone, message string) (*GatewayResult, error) {
	var out sslWirelessResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"api_token": g.cfg.APIKey,
			"sid":       g.cfg.SenderID,
			"msisdn":    phone,
			"sms":       message,
			"csms_id":   uuid.NewString()[:20],
		}).
		SetResult(&out).
		Post("/api/v3/send-sms")
	if err != nil {
		return nil, fmt.Errorf("ssl_wireless 请求失败: %w", err)
	}
	raw := resp.String()
	if resp.IsError() {
		return nil, fmt.Errorf("ssl_wireless HTTP %d: %s", resp.StatusCode(), raw)
	}
	if out.Status != "SUCCESS" {
		msg := out.ErrorMessage
		if msg == "" {
			msg = "status " + out.Status
		}
		return nil, errors.New("ssl_wireless: " + msg)
	}

	res := &GatewayResult{Raw: raw}
	if len(out.SMSInfo) > 0 {
		res.MessageID = out.SMSInfo[0].ReferenceID
	}
	return res, nil
}
