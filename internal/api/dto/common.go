package dto

// PageQuery 分页参数
type PageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ListResponse 列表响应
type ListResponse[T any] struct {
	Total int64 `json:"total"`
	List  []T   `json:"list"`
}

// NewListResponse 创建列表响应，nil 切片输出为 []
func NewListResponse[T any](list []T, total int64) *ListResponse[T] {
	if list == nil {
		list = []T{}
	}
	return &ListResponse[T]{Total: total, List: list}
}
