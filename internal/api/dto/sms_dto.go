package dto

// SMSTemplateRequest 短信模板
type SMSTemplateRequest struct {
	Code     string `json:"code" binding:"required,max=50"`
	Name     string `json:"name" binding:"max=100"`
	Body     string `json:"body" binding:"required,max=1000"`
	IsActive *bool  `json:"is_active"`
}

// SendSMSRequest 单条发送；指定 template_code 时按模板渲染
type SendSMSRequest struct {
	Phone        string            `json:"phone" binding:"required,bdphone"`
	Message      string            `json:"message" binding:"required_without=TemplateCode,max=1000"`
	TemplateCode string            `json:"template_code"`
	Vars         map[string]string `json:"vars"`
}

// BulkSMSRequest 群发
type BulkSMSRequest struct {
	Phones  []string `json:"phones" binding:"required,min=1,max=1000"`
	Message string   `json:"message" binding:"required,max=1000"`
}

// BulkSMSResult 群发结果
type BulkSMSResult struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// ListSMSLogsRequest 短信日志
type ListSMSLogsRequest struct {
	Phone     string `form:"phone"`
	Status    string `form:"status" binding:"omitempty,oneof=pending sent failed"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	PageQuery
}
