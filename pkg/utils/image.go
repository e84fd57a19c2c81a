package utils

import (
	"fmt"
	"net/http"
)

// MaxImageSize 单张商品图片上限
const MaxImageSize = 5 << 20

var imageExts = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// DetectImage 根据内容嗅探图片类型，返回 content-type 和扩展名
func DetectImage(data []byte) (contentType, ext string, err error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("empty image")
	}
	if len(data) > MaxImageSize {
		return "", "", fmt.Errorf("image too large: %d bytes", len(data))
	}
	contentType = http.DetectContentType(data)
	ext, ok := imageExts[contentType]
	if !ok {
		return "", "", fmt.Errorf("unsupported image type: %s", contentType)
	}
	return contentType, ext, nil
}
