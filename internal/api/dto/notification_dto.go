package dto

// ListNotificationsRequest 通知列表
type ListNotificationsRequest struct {
	UnreadOnly bool `form:"unread"`
	PageQuery
}

// UnreadCountResponse 未读数
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}
