package utils

import (
	"crypto/rand"
	"math/big"
)

// GenerateDigits 生成指定位数的随机数字串（OTP 用）
func GenerateDigits(n int) (string, error) {
	const digits = "0123456789"
	b := make([]byte, n)
	max := big.NewInt(int64(len(digits)))
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = digits[v.Int64()]
	}
	return string(b), nil
}
