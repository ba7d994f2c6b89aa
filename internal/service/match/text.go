package match

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Normalize 统一大小写与标点，折叠空白。数字中的小数点与单词中的撇号保留
func Normalize(s string) string {
	return strings.Join(Words(s), " ")
}

// Words 将文本切分为规范化后的单词
func Words(s string) []string {
	rs := []rune(strings.ToLower(s))
	var b strings.Builder
	for i, r := range rs {
		switch {
		case r == '’' || r == '\'':
			if i > 0 && i < len(rs)-1 && unicode.IsLetter(rs[i-1]) && unicode.IsLetter(rs[i+1]) {
				b.WriteRune('\'')
			} else {
				b.WriteRune(' ')
			}
		case r == '.':
			if i > 0 && i < len(rs)-1 && unicode.IsDigit(rs[i-1]) && unicode.IsDigit(rs[i+1]) {
				b.WriteRune('.')
			} else {
				b.WriteRune(' ')
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

var smallNumbers = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11,
	"twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15, "sixteen": 16,
	"seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tensNumbers = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

var scaleNumbers = map[string]int{
	"hundred": 100, "thousand": 1000, "million": 1000000,
}

// ParseNumber 解析阿拉伯数字或英文数字单词（"twenty one"、"a hundred and five"、"3.5"）
func ParseNumber(words []string) (float64, bool) {
	if len(words) == 0 {
		return 0, false
	}
	if len(words) == 1 {
		if f, ok := parseDigits(words[0]); ok {
			return f, true
		}
	}
	neg := false
	if words[0] == "minus" || words[0] == "negative" {
		neg = true
		words = words[1:]
		if len(words) == 0 {
			return 0, false
		}
		if len(words) == 1 {
			if f, ok := parseDigits(words[0]); ok {
				return -f, true
			}
		}
	}
	total, current := 0, 0
	seen := false
	for i, w := range words {
		switch {
		case w == "and" && seen:
			continue
		case w == "a" && i == 0:
			current = 1
		case smallNumbers[w] > 0 || w == "zero":
			current += smallNumbers[w]
			seen = true
		case tensNumbers[w] > 0:
			current += tensNumbers[w]
			seen = true
		case scaleNumbers[w] > 0:
			if current == 0 {
				current = 1
			}
			scale := scaleNumbers[w]
			if scale == 100 {
				current *= scale
			} else {
				total += current * scale
				current = 0
			}
			seen = true
		default:
			return 0, false
		}
	}
	if !seen {
		return 0, false
	}
	n := float64(total + current)
	if neg {
		n = -n
	}
	return n, true
}

// parseDigits 只接受以数字开头的有限十进制数，"nan"、"inf" 等单词不算数字
func parseDigits(w string) (float64, bool) {
	if w == "" || w[0] < '0' || w[0] > '9' {
		return 0, false
	}
	f, err := strconv.ParseFloat(w, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatNumber 数字的规范文本形式
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"last": -1,
}

var ordinalFiller = map[string]bool{
	"the": true, "one": true, "option": true, "number": true, "item": true,
	"choice": true, "please": true,
}

// ParseOrdinal 解析 "the second one"、"number 2"、"3rd"、"last" 这类序数表达。
// 返回从 1 开始的序号，-1 表示最后一个
func ParseOrdinal(words []string) (int, bool) {
	var rest []string
	for _, w := range words {
		if !ordinalFiller[w] {
			rest = append(rest, w)
		}
	}
	if len(rest) == 0 {
		// "number one" 过滤后为空，回退为原词
		if len(words) >= 2 && words[0] == "number" {
			rest = words[1:]
		} else {
			return 0, false
		}
	}
	if len(rest) == 1 {
		w := rest[0]
		if n, ok := ordinals[w]; ok {
			return n, true
		}
		for _, suf := range []string{"st", "nd", "rd", "th"} {
			if strings.HasSuffix(w, suf) {
				if n, err := strconv.Atoi(strings.TrimSuffix(w, suf)); err == nil && n > 0 {
					return n, true
				}
			}
		}
	}
	if n, ok := ParseNumber(rest); ok && n >= 1 && n == float64(int(n)) {
		return int(n), true
	}
	return 0, false
}
