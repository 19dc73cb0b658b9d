package recipe

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"meal-plan-generator/internal/pkg/common"
)

// repairMinLength 截斷的 JSON 需超過此長度才嘗試修補
const repairMinLength = 100

// jsonCandidate 一段可能是 JSON 物件的文字，以及它在原文中的範圍
type jsonCandidate struct {
	body       string
	start, end int
}

type jsonExtractor struct {
	strategy Strategy
	find     func(raw string) []jsonCandidate
}

var (
	fencePattern = regexp.MustCompile("(?s)```[ \\t]*[A-Za-z0-9_-]*[ \\t]*\\r?\\n?(.*?)```")
	keyedPattern = regexp.MustCompile(`\{\s*["']?(?:title|name|dish_name|ingredients|steps|description|recipe|recipes)["']?\s*:`)
	// 編號後必須接空白或結尾，1.5 cups 之類的小數數量不是編號
	itemMarker   = regexp.MustCompile(`^\s*(?:[-*•·–—]+\s*|\d+[.)](?:\s+|$))`)
	stepMarker   = regexp.MustCompile(`(?i)^\s*(?:(?:step|шаг)\s*\d+\s*[:.)\-–]?\s*|\d+[.)](?:\s+|$)|[-*•·–—]+\s*)`)
	firstInteger = regexp.MustCompile(`\d+`)
)

// 依優先順序排列的擷取策略
var jsonExtractors = []jsonExtractor{
	{StrategyFencedJSON, findFenced},
	{StrategyKeyedJSON, findKeyed},
	{StrategyFirstObject, findFirstObject},
	{StrategyLeadingObject, findLeadingObject},
	{StrategyAnyBrace, findAnyBrace},
}

// findFenced 程式碼區塊內容必須是完整的 JSON 物件
func findFenced(raw string) []jsonCandidate {
	var out []jsonCandidate
	for _, m := range fencePattern.FindAllStringSubmatchIndex(raw, -1) {
		content := strings.TrimSpace(raw[m[2]:m[3]])
		end, ok := common.BalancedObjectEnd(content, 0)
		if !ok {
			continue
		}
		out = append(out, jsonCandidate{body: content[:end], start: m[0], end: m[1]})
	}
	return out
}

// findKeyed 找第一個以食譜欄位開頭的物件
func findKeyed(raw string) []jsonCandidate {
	loc := keyedPattern.FindStringIndex(raw)
	if loc == nil {
		return nil
	}
	end, ok := common.BalancedObjectEnd(raw, loc[0])
	if !ok {
		return nil
	}
	return []jsonCandidate{{body: raw[loc[0]:end], start: loc[0], end: end}}
}

func findFirstObject(raw string) []jsonCandidate {
	i := strings.IndexByte(raw, '{')
	if i < 0 {
		return nil
	}
	end, ok := common.BalancedObjectEnd(raw, i)
	if !ok {
		return nil
	}
	return []jsonCandidate{{body: raw[i:end], start: i, end: end}}
}

// findLeadingObject 原文以 '{' 開頭；不平衡時嘗試補齊被截斷的物件
func findLeadingObject(raw string) []jsonCandidate {
	start := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
	if start >= len(raw) || raw[start] != '{' {
		return nil
	}
	if end, ok := common.BalancedObjectEnd(raw, start); ok {
		return []jsonCandidate{{body: raw[start:end], start: start, end: end}}
	}
	body := strings.TrimSpace(raw[start:])
	if len(body) <= repairMinLength {
		return nil
	}
	repaired, ok := common.RepairTruncatedObject(body)
	if !ok {
		return nil
	}
	return []jsonCandidate{{body: repaired, start: start, end: len(raw)}}
}

func findAnyBrace(raw string) []jsonCandidate {
	var out []jsonCandidate
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' {
			continue
		}
		if end, ok := common.BalancedObjectEnd(raw, i); ok {
			out = append(out, jsonCandidate{body: raw[i:end], start: i, end: end})
		}
	}
	return out
}

// parseJSON 回傳解析結果，以及是否看到任何可解析的 JSON 物件
func (p *Parser) parseJSON(raw string) (Result, bool, string) {
	var spans [][2]int
	var message string
	for _, ex := range jsonExtractors {
		for _, c := range ex.find(raw) {
			obj, err := common.ParseLooseObject(c.body)
			if err != nil {
				continue
			}
			if r := p.FromObject(obj); r != nil {
				return Result{Recipe: r, Strategy: ex.strategy, DisplayText: displayWithout(raw, c.start, c.end)}, true, raw
			}
			spans = append(spans, [2]int{c.start, c.end})
			if message == "" {
				message = envelopeMessage(obj)
			}
		}
	}
	if len(spans) == 0 {
		return Result{}, false, raw
	}

	// {"message": "..."} 信封：解析其中的文字
	if message != "" && strings.TrimSpace(message) != strings.TrimSpace(raw) {
		inner := p.Parse(message)
		if inner.Found() {
			return inner, true, raw
		}
		return Result{DisplayText: message, Reason: "envelope without recipe"}, true, raw
	}

	// 不是食譜的 JSON 物件移除後，其餘文字交給純文字策略
	return Result{DisplayText: raw, Reason: "json object is not a recipe"}, false, cutSpans(raw, spans)
}

// cutSpans 移除可能重疊的區段
func cutSpans(raw string, spans [][2]int) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	var sb strings.Builder
	pos := 0
	for _, sp := range spans {
		if sp[0] > pos {
			sb.WriteString(raw[pos:sp[0]])
		}
		if sp[1] > pos {
			pos = sp[1]
		}
	}
	if pos < len(raw) {
		sb.WriteString(raw[pos:])
	}
	return sb.String()
}

func envelopeMessage(obj map[string]interface{}) string {
	return firstString(obj, "message", "text", "content", "reply")
}

// FromObject 將 JSON 物件對應成食譜；支援 {"recipe": {...}} 與 {"recipes": [...]} 信封
func (p *Parser) FromObject(obj map[string]interface{}) *common.ParsedRecipe {
	if obj == nil {
		return nil
	}
	if inner, ok := obj["recipe"].(map[string]interface{}); ok {
		return p.FromObject(inner)
	}
	if list, ok := obj["recipes"].([]interface{}); ok {
		for _, item := range list {
			if m, ok := item.(map[string]interface{}); ok {
				if r := p.FromObject(m); r != nil {
					return r
				}
			}
		}
		return nil
	}

	r := &common.ParsedRecipe{
		Title:       firstString(obj, "title", "name", "dish_name", "recipe_name"),
		Description: firstString(obj, "description", "desc", "summary"),
		Ingredients: parseIngredients(firstValue(obj, "ingredients", "ingredient_list")),
		Steps:       parseSteps(firstValue(obj, "steps", "instructions", "directions", "method")),
		ChefAdvice:  firstString(obj, "chefAdvice", "chef_advice", "advice", "tip"),
		MiniAdvice:  firstString(obj, "miniAdvice", "mini_advice"),
	}
	if minutes, ok := firstInt(obj, "cookingTimeMinutes", "cooking_time_minutes", "cookingTime", "cooking_time", "cook_time", "time"); ok && minutes > 0 {
		r.CookingTimeMinutes = &minutes
	}
	return p.finish(r, firstString(obj, "mealType", "meal_type", "meal"))
}

func firstValue(obj map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

func firstInt(obj map[string]interface{}, keys ...string) (int, bool) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			return int(f), true
		}
		if s, ok := v.(string); ok {
			if m := firstInteger.FindString(s); m != "" {
				n, err := strconv.Atoi(m)
				return n, err == nil
			}
		}
	}
	return 0, false
}

func cleanItem(s string) string {
	return common.NormalizeSpace(itemMarker.ReplaceAllString(s, ""))
}

// splitList 以逗號、分號或換行切分；數字之間的逗號（1,5 кг）視為小數點
func splitList(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ',':
			if i > 0 && i+1 < len(s) && isDigit(s[i-1]) && isDigit(s[i+1]) {
				continue
			}
		case ';', '\n':
		default:
			continue
		}
		parts = append(parts, s[start:i])
		start = i + 1
	}
	return append(parts, s[start:])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// parseIngredients 接受陣列（字串或物件）或以逗號分隔的字串；無法解析的項目略過
func parseIngredients(v interface{}) []common.Ingredient {
	var out []common.Ingredient
	switch list := v.(type) {
	case string:
		for _, part := range splitList(list) {
			if name := cleanItem(part); name != "" {
				out = append(out, common.Ingredient{Name: name})
			}
		}
	case []interface{}:
		for _, item := range list {
			switch it := item.(type) {
			case string:
				if name := cleanItem(it); name != "" {
					out = append(out, common.Ingredient{Name: name})
				}
			case map[string]interface{}:
				if ing, ok := ingredientFromMap(it); ok {
					out = append(out, ing)
				}
			}
		}
	}
	return out
}

func ingredientFromMap(m map[string]interface{}) (common.Ingredient, bool) {
	ing := common.Ingredient{
		Name:        cleanItem(firstString(m, "name", "ingredient", "title", "item")),
		DisplayText: firstString(m, "displayText", "display_text", "display"),
		Substitute:  firstString(m, "substitute", "replacement"),
	}
	if ing.Name == "" {
		return ing, false
	}
	if ing.DisplayText == "" {
		if amount := firstString(m, "amount", "quantity", "qty"); amount != "" {
			ing.DisplayText = ing.Name + " — " + amount
		}
	}

	unit := strings.ToLower(firstString(m, "canonicalUnit", "canonical_unit"))
	if unit == "g" || unit == "ml" {
		if amount, ok := toFloat(firstValue(m, "canonicalAmount", "canonical_amount")); ok && amount > 0 {
			ing.CanonicalAmount = &amount
			ing.CanonicalUnit = unit
		}
	}
	return ing, true
}

// parseSteps 接受陣列（字串或物件）或以換行分隔的字串，保留順序
func parseSteps(v interface{}) []string {
	var out []string
	add := func(s string) {
		if step := common.NormalizeSpace(stepMarker.ReplaceAllString(s, "")); step != "" {
			out = append(out, step)
		}
	}
	switch list := v.(type) {
	case string:
		for _, line := range strings.Split(list, "\n") {
			add(line)
		}
	case []interface{}:
		for _, item := range list {
			switch it := item.(type) {
			case string:
				add(it)
			case map[string]interface{}:
				add(firstString(it, "text", "instruction", "description", "step"))
			}
		}
	}
	return out
}
