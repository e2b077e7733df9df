package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "普通邮箱保留前两位",
			input:    "alice@example.com",
			expected: "al***@example.com",
		},
		{
			name:     "本地部分只有一个字符时整体保留",
			input:    "a@example.com",
			expected: "a***@example.com",
		},
		{
			name:     "本地部分恰好两个字符",
			input:    "ab@example.com",
			expected: "ab***@example.com",
		},
		{
			name:     "域名完整保留",
			input:    "zhangsan@mail.company.co",
			expected: "zh***@mail.company.co",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Mask(tc.input))
		})
	}
}

func TestMaskPhone(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "手机号只保留末四位",
			input:    "13812345678",
			expected: "***5678",
		},
		{
			name:     "恰好四位时掩码后整体保留",
			input:    "1234",
			expected: "***1234",
		},
		{
			name:     "不足四位时掩码后整体保留",
			input:    "88",
			expected: "***88",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Mask(tc.input))
		})
	}
}

func TestMaskPassthrough(t *testing.T) {
	// 空串与非 PII 形态原样返回
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "user_42", Mask("user_42"))
	assert.Equal(t, "push-token-abc123", Mask("push-token-abc123"))
}
