package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ParseJSON 解析 JSON 字符串到結構體
func ParseJSON(data string, v interface{}) error {
	return decodeJSON(strings.NewReader(data), v)
}

// ParseJSONBytes 解析 JSON 位元組切片到結構體
func ParseJSONBytes(data []byte, v interface{}) error {
	return decodeJSON(bytes.NewReader(data), v)
}

func decodeJSON(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := dec.Decode(v); err != nil {
		return err
	}

	// 確保沒有多餘資料
	for {
		t, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if t != nil {
			return fmt.Errorf("unexpected extra JSON data")
		}
	}
}

var (
	unquotedKeyPattern = regexp.MustCompile(`([{\[,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingComma      = regexp.MustCompile(`,(\s*[}\]])`)
)

// QuoteJSONKeys 將未加雙引號的鍵補上雙引號
func QuoteJSONKeys(raw string) string {
	return unquotedKeyPattern.ReplaceAllString(raw, `$1"$2":`)
}

// NormalizeSingleQuotes 將單引號字串轉為雙引號字串，雙引號字串內容保持不變
func NormalizeSingleQuotes(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	var quote rune
	escaped := false
	for _, r := range raw {
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
				if quote == '\'' && r == '\'' {
					// \' 在 JSON 中不合法，直接輸出單引號
					s := sb.String()
					sb.Reset()
					sb.WriteString(s[:len(s)-1])
					sb.WriteRune('\'')
					continue
				}
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
				sb.WriteRune('"')
				continue
			case quote == '\'' && r == '"':
				sb.WriteString(`\"`)
				continue
			}
			sb.WriteRune(r)
			continue
		}
		switch r {
		case '"':
			quote = '"'
		case '\'':
			quote = '\''
			sb.WriteRune('"')
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// ParseLooseObject 解析可能不標準的 JSON 物件（未加引號的鍵、單引號、結尾逗號）
func ParseLooseObject(raw string) (map[string]interface{}, error) {
	var obj map[string]interface{}
	err := ParseJSON(raw, &obj)
	if err == nil && obj != nil {
		return obj, nil
	}

	repaired := NormalizeSingleQuotes(raw)
	repaired = QuoteJSONKeys(repaired)
	repaired = trailingComma.ReplaceAllString(repaired, "$1")
	obj = nil
	if err2 := ParseJSON(repaired, &obj); err2 != nil {
		if err == nil {
			err = err2
		}
		return nil, fmt.Errorf("failed to parse JSON object: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("JSON value is not an object")
	}
	return obj, nil
}

// BalancedObjectEnd 從 start（必須是 '{'）開始掃描，回傳配對 '}' 之後的索引；
// 字串內的括號與跳脫字元不計入深度
func BalancedObjectEnd(s string, start int) (int, bool) {
	if start < 0 || start >= len(s) || s[start] != '{' {
		return 0, false
	}
	depth := 0
	var quote byte
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// RepairTruncatedObject 嘗試補齊被截斷的 JSON 物件（關閉未結束的字串與括號）
func RepairTruncatedObject(s string) (string, bool) {
	if !strings.HasPrefix(s, "{") {
		return "", false
	}
	var stack []byte
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 && quote == 0 {
		return s, false
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(s, " \t\r\n"))
	if escaped {
		sb.WriteByte('\\')
	}
	if quote != 0 {
		sb.WriteByte(quote)
	}
	repaired := strings.TrimRight(sb.String(), " \t\r\n,:")
	sb.Reset()
	sb.WriteString(repaired)
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteByte(stack[i])
	}
	return sb.String(), true
}

// ToJSON 將結構體轉換為 JSON 字符串
func ToJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
