package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"phonebay/internal/api/dto"
	"phonebay/internal/config"
	"phonebay/internal/model"
	"phonebay/internal/repository"
	"phonebay/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// bulkConcurrency 群发并发数
const bulkConcurrency = 10

// SMSSender 短信发送能力（订单 / 认证 / 通知依赖此接口）
type SMSSender interface {
	Send(ctx context.Context, phone, message, templateCode string) (*model.SMSLog, error)
	SendTemplate(ctx context.Context, code, phone string, vars map[string]string) (*model.SMSLog, error)
}

// ==================== SMSService 短信服务 ====================

// SMSService 短信服务：主通道失败时切换备用通道，每次发送都落库
type SMSService struct {
	repo     repository.SMSRepository
	primary  SMSGateway
	fallback SMSGateway
	enabled  bool
	now      func() time.Time
	log      *zap.Logger
}

// NewSMSService 按配置创建短信服务
func NewSMSService(repo repository.SMSRepository, cfg config.SMSConfig) (*SMSService, error) {
	primary, err := NewSMSGateway(cfg.Primary)
	if err != nil {
		return nil, err
	}
	fallback, err := NewSMSGateway(cfg.Fallback)
	if err != nil {
		return nil, err
	}
	return NewSMSServiceWithGateways(repo, cfg.Enabled, primary, fallback), nil
}

// NewSMSServiceWithGateways 直接注入网关（测试用）
func NewSMSServiceWithGateways(repo repository.SMSRepository, enabled bool, primary, fallback SMSGateway) *SMSService {
	return &SMSService{
		repo:     repo,
		primary:  primary,
		fallback: fallback,
		enabled:  enabled && primary != nil,
		now:      time.Now,
		log:      zap.L().Named("sms"),
	}
}

// ==================== 发送 ====================

// Send 发送短信
// 1. 规范化手机号，非法号码记失败日志
// 2. 写入 pending 日志
// 3. 主通道 -> 备用通道
// 4. 回写发送结果
func (s *SMSService) Send(ctx context.Context, phone, message, templateCode string) (*model.SMSLog, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		entry := s.newLog(truncate(phone, 20), message, templateCode)
		entry.Status = model.SMSStatusFailed
		entry.Error = err.Error()
		if cerr := s.repo.CreateLog(ctx, entry); cerr != nil {
			s.log.Warn("写入短信日志失败", zap.Error(cerr))
		}
		return entry, invalidf("手机号格式错误: %s", phone)
	}

	entry := s.newLog(normalized, message, templateCode)
	if err := s.repo.CreateLog(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.deliver(ctx, entry); err != nil {
		return entry, err
	}
	return entry, nil
}

// SendTemplate 按模板发送，模板不存在或未启用返回 ErrNotFound
func (s *SMSService) SendTemplate(ctx context.Context, code, phone string, vars map[string]string) (*model.SMSLog, error) {
	tpl, err := s.repo.GetTemplateByCode(ctx, code)
	if err != nil {
		return nil, notFound(err, "短信模板 "+code)
	}
	if !tpl.IsActive {
		return nil, notFoundf("短信模板未启用: %s", code)
	}
	return s.Send(ctx, phone, RenderTemplate(tpl.Body, vars), code)
}

// SendRequest 管理后台单条发送
func (s *SMSService) SendRequest(ctx context.Context, req *dto.SendSMSRequest) (*model.SMSLog, error) {
	if req.TemplateCode != "" {
		return s.SendTemplate(ctx, req.TemplateCode, req.Phone, req.Vars)
	}
	return s.Send(ctx, req.Phone, req.Message, "")
}

// SendBulk 群发，并发度 bulkConcurrency，单条失败不影响其他号码
func (s *SMSService) SendBulk(ctx context.Context, phones []string, message string) *dto.BulkSMSResult {
	var sent, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(bulkConcurrency)
	for _, phone := range phones {
		phone := phone
		g.Go(func() error {
			if _, err := s.Send(ctx, phone, message, ""); err != nil {
				failed.Add(1)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return &dto.BulkSMSResult{
		Total:  len(phones),
		Sent:   int(sent.Load()),
		Failed: int(failed.Load()),
	}
}

// RetryResult 重试结果
type RetryResult struct {
	Retried int `json:"retried"`
	Sent    int `json:"sent"`
}

// RetryFailed 重发 since 之后失败且尝试次数 < maxAttempts 的短信
func (s *SMSService) RetryFailed(ctx context.Context, since time.Time, maxAttempts int) (*RetryResult, error) {
	logs, err := s.repo.FindRetryable(ctx, since, maxAttempts, 500)
	if err != nil {
		return nil, err
	}

	res := &RetryResult{}
	for i := range logs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		// 号码非法的记录重试也不会成功，次数直接记满，之后不再被捞出
		if !utils.IsValidPhone(logs[i].Phone) {
			if err := s.repo.UpdateLog(ctx, logs[i].ID, logs[i].CreatedAt, map[string]interface{}{"attempts": maxAttempts}); err != nil {
				s.log.Warn("短信日志更新失败", zap.Int64("id", logs[i].ID), zap.Error(err))
			}
			continue
		}
		res.Retried++
		if err := s.deliver(ctx, &logs[i]); err == nil {
			res.Sent++
		}
	}
	return res, nil
}

// deliver 依次尝试主、备通道并回写日志
func (s *SMSService) deliver(ctx context.Context, entry *model.SMSLog) error {
	entry.Attempts++
	fields := map[string]interface{}{"attempts": entry.Attempts}

	if !s.enabled {
		t := s.now()
		entry.Status, entry.Provider, entry.SentAt = model.SMSStatusSent, SMSProviderDisabled, &t
		fields["status"], fields["provider"], fields["sent_at"] = entry.Status, entry.Provider, t
		s.log.Info("短信未启用，仅记录", zap.String("phone", utils.MaskPhone(entry.Phone)))
		return s.repo.UpdateLog(ctx, entry.ID, entry.CreatedAt, fields)
	}

	var errs []string
	for _, gw := range []SMSGateway{s.primary, s.fallback} {
		if gw == nil {
			continue
		}
		res, err := gw.Send(ctx, entry.Phone, entry.Message)
		if err != nil {
			s.log.Warn("短信通道发送失败",
				zap.String("provider", gw.Name()),
				zap.String("phone", utils.MaskPhone(entry.Phone)),
				zap.Error(err))
			errs = append(errs, gw.Name()+": "+err.Error())
			continue
		}

		t := s.now()
		entry.Status, entry.Provider, entry.SentAt = model.SMSStatusSent, gw.Name(), &t
		entry.ProviderMessageID, entry.Response, entry.Error = res.MessageID, res.Raw, strings.Join(errs, "; ")
		fields["status"], fields["provider"], fields["sent_at"] = entry.Status, entry.Provider, t
		fields["provider_message_id"], fields["response"], fields["error"] = entry.ProviderMessageID, entry.Response, entry.Error
		return s.repo.UpdateLog(ctx, entry.ID, entry.CreatedAt, fields)
	}

	entry.Status, entry.Error = model.SMSStatusFailed, strings.Join(errs, "; ")
	fields["status"], fields["error"] = entry.Status, entry.Error
	if err := s.repo.UpdateLog(ctx, entry.ID, entry.CreatedAt, fields); err != nil {
		s.log.Warn("回写短信日志失败", zap.Int64("id", entry.ID), zap.Error(err))
	}
	return fmt.Errorf("%w: %s", ErrUnavailable, entry.Error)
}

func (s *SMSService) newLog(phone, message, templateCode string) *model.SMSLog {
	return &model.SMSLog{
		// 分区键，回写时按 (id, created_at) 定位
		CreatedAt:    s.now().Truncate(time.Microsecond),
		Phone:        phone,
		Message:      message,
		TemplateCode: templateCode,
		Status:       model.SMSStatusPending,
	}
}

// ==================== 模板 ====================

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// RenderTemplate 替换 {key} 占位符，未提供的占位符原样保留
func RenderTemplate(body string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(body, func(m string) string {
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// ListTemplates 模板列表
func (s *SMSService) ListTemplates(ctx context.Context) ([]model.SMSTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

// CreateTemplate 创建模板
func (s *SMSService) CreateTemplate(ctx context.Context, req *dto.SMSTemplateRequest) (*model.SMSTemplate, error) {
	code := strings.TrimSpace(req.Code)
	exists, err := s.repo.TemplateCodeExists(ctx, code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, conflictf("模板编码已存在: %s", code)
	}

	tpl := &model.SMSTemplate{Code: code, Name: req.Name, Body: req.Body, IsActive: true}
	if req.IsActive != nil {
		tpl.IsActive = *req.IsActive
	}
	if err := s.repo.CreateTemplate(ctx, tpl); err != nil {
		return nil, translateErr(err)
	}
	return tpl, nil
}

// UpdateTemplate 更新模板
func (s *SMSService) UpdateTemplate(ctx context.Context, id int64, req *dto.SMSTemplateRequest) (*model.SMSTemplate, error) {
	tpl, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, notFound(err, "短信模板")
	}

	code := strings.TrimSpace(req.Code)
	if code != tpl.Code {
		exists, err := s.repo.TemplateCodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, conflictf("模板编码已存在: %s", code)
		}
	}

	tpl.Code, tpl.Name, tpl.Body = code, req.Name, req.Body
	if req.IsActive != nil {
		tpl.IsActive = *req.IsActive
	}
	if err := s.repo.UpdateTemplate(ctx, tpl); err != nil {
		return nil, translateErr(err)
	}
	return tpl, nil
}

// DeleteTemplate 删除模板
func (s *SMSService) DeleteTemplate(ctx context.Context, id int64) error {
	if _, err := s.repo.GetTemplate(ctx, id); err != nil {
		return notFound(err, "短信模板")
	}
	return s.repo.DeleteTemplate(ctx, id)
}

// ListLogs 发送记录
func (s *SMSService) ListLogs(ctx context.Context, req *dto.ListSMSLogsRequest) ([]model.SMSLog, int64, error) {
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, 0, err
	}
	filter := repository.SMSLogFilter{
		Status:    req.Status,
		StartDate: start,
		EndDate:   end,
		Page:      repository.Page{Page: req.Page, PageSize: req.PageSize},
	}
	if req.Phone != "" {
		if p, err := utils.NormalizePhone(req.Phone); err == nil {
			filter.Phone = p
		} else {
			filter.Phone = req.Phone
		}
	}
	return s.repo.ListLogs(ctx, filter)
}

// truncate 截断到不超过 n 字节，不切断多字节字符
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var _ SMSSender = (*SMSService)(nil)
