package normalize

import (
	"errors"
	"math/big"
	"strings"
)

var (
	// ErrInvalidAddress 地址格式不合法
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidTxHash 交易哈希格式不合法
	ErrInvalidTxHash = errors.New("invalid transaction hash")
	// ErrInvalidAmount 金额不是非负整数
	ErrInvalidAmount = errors.New("invalid amount")
)

// Address 规范化账户地址：校验 0x + 40 位十六进制并转为小写。
// 账本和链上数据的地址比较都以该形式进行。
func Address(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !isHexString(s, 40) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(s), nil
}

// TxHash 规范化交易哈希：校验 0x + 64 位十六进制并转为小写
func TxHash(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !isHexString(s, 64) {
		return "", ErrInvalidTxHash
	}
	return strings.ToLower(s), nil
}

// Amount 解析基础单位金额串为任意精度整数，拒绝负数和非整数
func Amount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidAmount
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return n, nil
}

// DecimalAmount 将用户输入的十进制金额串按代币精度换算成基础单位整数，
// 多余的小数位直接截断。
func DecimalAmount(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || decimals < 0 {
		return nil, ErrInvalidAmount
	}

	whole := s
	frac := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole = s[:idx]
		frac = s[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if !isDecimalDigits(whole) || (frac != "" && !isDecimalDigits(frac)) {
		return nil, ErrInvalidAmount
	}

	// 截断超出精度的小数位
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	n, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, ErrInvalidAmount
	}
	return n, nil
}

// AmountEqual 比较两个基础单位金额串是否整数相等。
// 任一方解析失败视为不相等，绝不退化成字符串比较。
func AmountEqual(a, b string) bool {
	x, err := Amount(a)
	if err != nil {
		return false
	}
	y, err := Amount(b)
	if err != nil {
		return false
	}
	return x.Cmp(y) == 0
}

// Handle 规范化收款链接 handle：去空白并转小写
func Handle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isHexString(s string, hexLen int) bool {
	if len(s) != hexLen+2 {
		return false
	}
	if s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isDecimalDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
