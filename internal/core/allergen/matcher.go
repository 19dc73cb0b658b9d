// Package allergen 以整字或詞幹比對過敏原與偏好限制。
package allergen

import (
	"strings"
	"unicode"

	"meal-plan-generator/internal/core/rules"
)

// Hit 比對結果
type Hit struct {
	Hit    bool
	Token  string // 命中的 token（不含 '*'）
	Source string // 產生此 token 的限制字串
}

// matchMode 單字的比對方式
type matchMode int

const (
	matchExact  matchMode = iota // milk：完整字，接受 s/es
	matchPrefix                  // milk*：字首
	matchSuffix                  // *milk：複合字結尾，接受 s/es
	matchInfix                   // *milk*：字中任意位置
)

// pattern 單一 token 的編譯結果
type pattern struct {
	raw    string
	source string
	words  []string
	modes  []matchMode
	keys   []string // 每個單字含 '*' 的原形，用於查例外表
}

// TokenSet 已正規化、可重複使用的 token 集合，建立後唯讀，可併發使用
type TokenSet struct {
	patterns   []pattern
	exceptions map[string]map[string]bool
}

// Matcher 依照字典展開限制字串
type Matcher struct {
	tables     *rules.Tables
	exceptions map[string]map[string]bool
}

// NewMatcher 創建比對器
func NewMatcher(tables *rules.Tables) *Matcher {
	if tables == nil {
		tables = rules.Default()
	}
	ex := make(map[string]map[string]bool, len(tables.StemExceptions))
	for stem, words := range tables.StemExceptions {
		set := make(map[string]bool, len(words))
		for _, w := range words {
			set[Normalize(w)] = true
		}
		ex[wordKey(stem)] = set
	}
	return &Matcher{tables: tables, exceptions: ex}
}

// Tables 回傳使用中的關鍵字表
func (m *Matcher) Tables() *rules.Tables {
	return m.tables
}

// Normalize 轉小寫、ё→е、非字母數字轉為空白並合併空白
func Normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if r == 'ё' {
			r = 'е'
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			space = false
			continue
		}
		if !space {
			sb.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(sb.String())
}

// Words 正規化後切成單字
func Words(s string) []string {
	return strings.Fields(Normalize(s))
}

// NormalizeAllergy 將別名轉為標準名稱，未知輸入原樣（去空白）回傳
func (m *Matcher) NormalizeAllergy(input string) string {
	n := Normalize(input)
	if n == "" {
		return strings.TrimSpace(input)
	}
	for _, cat := range m.tables.Allergens {
		if Normalize(cat.Canonical) == n {
			return cat.Canonical
		}
		for _, alias := range cat.Aliases {
			if Normalize(alias) == n {
				return cat.Canonical
			}
		}
	}
	return strings.TrimSpace(input)
}

// BuildTokenSet 由過敏限制建立 token 集合；字典中的分類會展開為所有同義詞
func (m *Matcher) BuildTokenSet(allergies []string) TokenSet {
	set := TokenSet{exceptions: m.exceptions}
	for _, allergy := range allergies {
		n := Normalize(allergy)
		if n == "" {
			continue
		}
		source := strings.TrimSpace(allergy)
		words := strings.Fields(n)
		matched := false
		for _, cat := range m.tables.Allergens {
			if !m.categoryMatches(cat, n, words) {
				continue
			}
			matched = true
			for _, tok := range cat.Tokens {
				set.add(tok, source)
			}
		}

		// 原字串本身永遠是 token
		set.add(n, source)
		if !matched {
			for _, w := range words {
				if len([]rune(w)) >= 3 {
					set.add(w, source)
				}
			}
		}
	}
	return set
}

// categoryMatches 完全等於標準名稱或別名，或以整字包含較長的別名
func (m *Matcher) categoryMatches(cat rules.AllergenCategory, n string, words []string) bool {
	if Normalize(cat.Canonical) == n {
		return true
	}
	for _, alias := range append([]string{cat.Canonical}, cat.Aliases...) {
		an := Normalize(alias)
		if an == n {
			return true
		}
		if len([]rune(an)) < 3 {
			continue
		}
		p := compile(an, "")
		if p.matchAt(words, m.exceptions) >= 0 {
			return true
		}
	}
	return false
}

// CompileTokens 直接編譯表格 token（不經字典展開）
func (m *Matcher) CompileTokens(tokens []string, source string) TokenSet {
	set := TokenSet{exceptions: m.exceptions}
	for _, tok := range tokens {
		set.add(tok, source)
	}
	return set
}

// PhraseSet 以完整字比對的片語集合（不允許詞幹），用於不喜歡的食物
func (m *Matcher) PhraseSet(phrases []string, minRunes int) TokenSet {
	set := TokenSet{exceptions: m.exceptions}
	for _, p := range phrases {
		n := Normalize(p)
		if len([]rune(n)) < minRunes {
			continue
		}
		set.add(strings.ReplaceAll(n, "*", ""), strings.TrimSpace(p))
	}
	return set
}

func (s *TokenSet) add(token, source string) {
	p := compile(token, source)
	if len(p.words) == 0 {
		return
	}
	for _, existing := range s.patterns {
		if existing.raw == p.raw {
			return
		}
	}
	s.patterns = append(s.patterns, p)
}

// compile 將 token 轉成 pattern；單字結尾 '*' 為字首比對，開頭 '*' 允許前面接其他字（複合字）
func compile(token, source string) pattern {
	p := pattern{source: source}
	for _, field := range strings.Fields(strings.ToLower(token)) {
		leading := strings.HasPrefix(field, "*")
		trailing := len(field) > 1 && strings.HasSuffix(field, "*")
		parts := strings.Fields(Normalize(strings.Trim(field, "*")))
		for i, part := range parts {
			lead := leading && i == 0
			trail := trailing && i == len(parts)-1
			p.words = append(p.words, part)
			p.modes = append(p.modes, modeOf(lead, trail))
			p.keys = append(p.keys, decorate(part, lead, trail))
		}
	}
	p.raw = strings.Join(p.keys, " ")
	return p
}

func modeOf(leading, trailing bool) matchMode {
	switch {
	case leading && trailing:
		return matchInfix
	case leading:
		return matchSuffix
	case trailing:
		return matchPrefix
	}
	return matchExact
}

func decorate(w string, leading, trailing bool) string {
	if leading {
		w = "*" + w
	}
	if trailing {
		w += "*"
	}
	return w
}

// wordKey 例外表的鍵，與 pattern.keys 同形
func wordKey(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	return decorate(Normalize(strings.Trim(raw, "*")), strings.HasPrefix(raw, "*"), len(raw) > 1 && strings.HasSuffix(raw, "*"))
}

// Len token 數量
func (s TokenSet) Len() int {
	return len(s.patterns)
}

// Empty 是否沒有任何 token
func (s TokenSet) Empty() bool {
	return len(s.patterns) == 0
}

// Tokens 回傳所有 token（除錯與提示詞使用）
func (s TokenSet) Tokens() []string {
	out := make([]string, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, p.raw)
	}
	return out
}

// Merge 合併兩個集合
func (s TokenSet) Merge(o TokenSet) TokenSet {
	out := TokenSet{exceptions: s.exceptions, patterns: append([]pattern(nil), s.patterns...)}
	if out.exceptions == nil {
		out.exceptions = o.exceptions
	}
	for _, p := range o.patterns {
		dup := false
		for _, e := range out.patterns {
			if e.raw == p.raw {
				dup = true
				break
			}
		}
		if !dup {
			out.patterns = append(out.patterns, p)
		}
	}
	return out
}

// ContainsAnyToken 檢查文字是否含有任何 token
func (s TokenSet) ContainsAnyToken(text string) Hit {
	if len(s.patterns) == 0 {
		return Hit{}
	}
	return s.ContainsAnyWord(Words(text))
}

// ContainsAnyWord 對已切好的單字序列比對，讓多組 token 共用一次正規化
func (s TokenSet) ContainsAnyWord(words []string) Hit {
	for _, p := range s.patterns {
		if p.matchAt(words, s.exceptions) >= 0 {
			return Hit{Hit: true, Token: strings.ReplaceAll(p.raw, "*", ""), Source: p.source}
		}
	}
	return Hit{}
}

// AllHits 回傳所有命中的 token
func (s TokenSet) AllHits(text string) []Hit {
	words := Words(text)
	var hits []Hit
	for _, p := range s.patterns {
		if p.matchAt(words, s.exceptions) >= 0 {
			hits = append(hits, Hit{Hit: true, Token: strings.ReplaceAll(p.raw, "*", ""), Source: p.source})
		}
	}
	return hits
}

// matchAt 回傳第一個命中的位置，沒有則 -1
func (p pattern) matchAt(words []string, exceptions map[string]map[string]bool) int {
	n := len(p.words)
	if n == 0 {
		return -1
	}
	for i := 0; i+n <= len(words); i++ {
		ok := true
		for j := 0; j < n; j++ {
			if !wordMatches(p.words[j], p.modes[j], p.keys[j], words[i+j], exceptions) {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

func wordMatches(want string, mode matchMode, key, got string, exceptions map[string]map[string]bool) bool {
	var ok bool
	switch mode {
	case matchExact:
		return got == want || got == want+"s" || got == want+"es"
	case matchPrefix:
		ok = strings.HasPrefix(got, want)
	case matchSuffix:
		ok = strings.HasSuffix(got, want) || strings.HasSuffix(got, want+"s") || strings.HasSuffix(got, want+"es")
	case matchInfix:
		ok = strings.Contains(got, want)
	}
	if !ok {
		return false
	}
	if ex, found := exceptions[key]; found && ex[got] {
		return false
	}
	return true
}
