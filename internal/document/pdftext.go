package document

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf16"
)

// ExtractText 从PDF页面内容流中提取文本
// 只处理文本显示操作符(Tj, TJ, ', ")，换行依据文本定位操作符(Td, TD, T*, ET)
func ExtractText(stream []byte) string {
	var (
		out      strings.Builder
		line     strings.Builder
		operands []string
		inArray  bool
	)

	flushLine := func() {
		if text := strings.TrimSpace(line.String()); text != "" {
			out.WriteString(text)
			out.WriteString("\n")
		}
		line.Reset()
	}

	for i := 0; i < len(stream); {
		c := stream[i]
		switch {
		case c == '(':
			s, next := readLiteralString(stream, i)
			operands = append(operands, s)
			i = next
		case c == '<' && i+1 < len(stream) && stream[i+1] == '<':
			i += 2
		case c == '>' && i+1 < len(stream) && stream[i+1] == '>':
			i += 2
		case c == '<':
			s, next := readHexString(stream, i)
			if s != "" {
				operands = append(operands, s)
			}
			i = next
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
		case isNumberStart(c):
			start := i
			i++
			for i < len(stream) && (isDigit(stream[i]) || stream[i] == '.') {
				i++
			}
			// TJ数组中较大的负偏移通常表示单词间距
			if inArray {
				if n, err := strconv.ParseFloat(string(stream[start:i]), 64); err == nil && n < -200 {
					operands = append(operands, " ")
				}
			}
		case isRegular(c):
			start := i
			for i < len(stream) && isRegular(stream[i]) {
				i++
			}
			switch string(stream[start:i]) {
			case "Tj", "TJ":
				line.WriteString(strings.Join(operands, ""))
			case "'", "\"":
				flushLine()
				line.WriteString(strings.Join(operands, ""))
			case "Td", "TD", "T*", "ET":
				flushLine()
			}
			operands = operands[:0]
		default:
			i++
		}
	}
	flushLine()

	return strings.TrimSpace(out.String())
}

// readLiteralString 读取 (...) 字符串，处理嵌套括号和转义
func readLiteralString(b []byte, start int) (string, int) {
	var buf []byte
	depth := 0
	i := start
	for i < len(b) {
		c := b[i]
		switch c {
		case '\\':
			i++
			if i >= len(b) {
				break
			}
			switch e := b[i]; e {
			case 'n':
				buf = append(buf, '\n')
			case 'r':
				buf = append(buf, '\r')
			case 't':
				buf = append(buf, '\t')
			case 'b', 'f':
			case '\r', '\n':
				// 续行
			default:
				if e >= '0' && e <= '7' {
					j := i
					for j < len(b) && j < i+3 && b[j] >= '0' && b[j] <= '7' {
						j++
					}
					n, _ := strconv.ParseUint(string(b[i:j]), 8, 8)
					buf = append(buf, byte(n))
					i = j - 1
				} else {
					buf = append(buf, e)
				}
			}
		case '(':
			if depth > 0 {
				buf = append(buf, c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return decodePDFString(buf), i + 1
			}
			buf = append(buf, c)
		default:
			buf = append(buf, c)
		}
		i++
	}
	return decodePDFString(buf), i
}

// readHexString 读取 <...> 十六进制字符串，无法识别为文本时返回空串
func readHexString(b []byte, start int) (string, int) {
	end := start + 1
	for end < len(b) && b[end] != '>' {
		end++
	}
	digits := strings.Join(strings.Fields(string(b[start+1:end])), "")
	if len(digits)%2 == 1 {
		digits += "0"
	}
	next := end + 1

	raw, err := hex.DecodeString(digits)
	if err != nil {
		return "", next
	}
	if hasUTF16BOM(raw) {
		return decodePDFString(raw), next
	}
	for _, c := range raw {
		if c < 0x20 || c > 0x7e {
			return "", next
		}
	}
	return string(raw), next
}

// decodePDFString 将PDF字符串字节转换为Go字符串
// 带BOM的按UTF-16BE解码，其余按Latin-1逐字节转换
func decodePDFString(b []byte) string {
	if hasUTF16BOM(b) {
		b = b[2:]
		units := make([]uint16, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(units))
	}

	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func hasUTF16BOM(b []byte) bool {
	return len(b) >= 2 && b[0] == 0xfe && b[1] == 0xff
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNumberStart(c byte) bool {
	return isDigit(c) || c == '-' || c == '+' || c == '.'
}

// isRegular 判断是否为PDF常规字符(非空白、非分隔符)
func isRegular(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0,
		'(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return false
	}
	return true
}
