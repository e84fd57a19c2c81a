package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"本地格式", "01712345678", "8801712345678", false},
		{"国际格式带加号", "+8801812345678", "8801812345678", false},
		{"国际格式", "8801912345678", "8801912345678", false},
		{"省略前导零", "1512345678", "8801512345678", false},
		{"带空格短横线", "+880 171-234-5678", "8801712345678", false},
		{"运营商前缀非法", "01212345678", "", true},
		{"位数不足", "0171234567", "", true},
		{"含字母", "0171234567a", "", true},
		{"空串", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "8801712****78", MaskPhone("8801712345678"))
	assert.Equal(t, "123", MaskPhone("123"))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Galaxy S24 Ultra (512GB)", "galaxy-s24-ultra-512gb"},
		{"  iPhone 16 Pro -- Max ", "iphone-16-pro-max"},
		{"Café Noël", "cafe-noel"},
		{"মোবাইল", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestGenerateDigits(t *testing.T) {
	code, err := GenerateDigits(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestDetectImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	ct, ext, err := DetectImage(png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, ".png", ext)

	_, _, err = DetectImage([]byte("plain text"))
	assert.Error(t, err)

	_, _, err = DetectImage(nil)
	assert.Error(t, err)
}
