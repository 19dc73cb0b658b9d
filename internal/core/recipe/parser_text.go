package recipe

import (
	"regexp"
	"strings"

	"meal-plan-generator/internal/core/allergen"
	"meal-plan-generator/internal/pkg/common"
)

const (
	proseMinRunes       = 300
	proseMaxListLines   = 3
	shortIngredientLine = 40
	longStepLine        = 50
	maxHeaderWords      = 4
)

type section int

const (
	sectionNone section = iota
	sectionIngredients
	sectionSteps
	sectionAdvice
)

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	listLine       = regexp.MustCompile(`^\s*(?:[-*•·–—]+|\d+\s*[.)])\s+`)
	legacyHeader   = regexp.MustCompile(`^\s*[\p{So}\p{Sk}\p{Mn}\p{Cf}]+\s*\*\*(.+?)\*\*\s*:?\s*(.*)$`)
	quantitySplit  = regexp.MustCompile(`^(.{1,60}?)(?:\s+[—–-]\s+|:\s+)(.+)$`)
)

// looksLikeProse 長篇、多段落且含解說用語的文字視為對話而非食譜
func (p *Parser) looksLikeProse(raw string) bool {
	if len([]rune(raw)) < proseMinRunes {
		return false
	}
	paragraphs := 0
	for _, para := range paragraphBreak.Split(raw, -1) {
		if strings.TrimSpace(para) != "" {
			paragraphs++
		}
	}
	if paragraphs < 2 {
		return false
	}
	lists := 0
	for _, line := range strings.Split(raw, "\n") {
		if listLine.MatchString(line) {
			lists++
		}
	}
	if lists >= proseMaxListLines {
		return false
	}
	return p.prose.ContainsAnyToken(raw).Hit
}

func (p *Parser) headerSection(text string) section {
	n := allergen.Normalize(text)
	if n == "" || len(strings.Fields(n)) > maxHeaderWords {
		return sectionNone
	}
	switch {
	case p.ingHeaders.ContainsAnyToken(n).Hit:
		return sectionIngredients
	case p.stepHdrs.ContainsAnyToken(n).Hit:
		return sectionSteps
	case p.adviceHdrs.ContainsAnyToken(n).Hit:
		return sectionAdvice
	}
	return sectionNone
}

// recipeBuilder 逐行累積各區段內容
type recipeBuilder struct {
	recipe common.ParsedRecipe
	advice []string
}

func (b *recipeBuilder) add(sec section, line string) {
	item := cleanItem(line)
	if item == "" {
		return
	}
	switch sec {
	case sectionIngredients:
		b.recipe.Ingredients = append(b.recipe.Ingredients, ingredientFromLine(item))
	case sectionSteps:
		if step := common.NormalizeSpace(stepMarker.ReplaceAllString(line, "")); step != "" {
			b.recipe.Steps = append(b.recipe.Steps, step)
		}
	case sectionAdvice:
		b.advice = append(b.advice, item)
	}
}

func (b *recipeBuilder) build() *common.ParsedRecipe {
	r := b.recipe
	if len(b.advice) > 0 {
		r.ChefAdvice = strings.Join(b.advice, " ")
	}
	return &r
}

// ingredientFromLine 「名稱 — 份量」或「名稱: 份量」拆成名稱與顯示文字
func ingredientFromLine(item string) common.Ingredient {
	if m := quantitySplit.FindStringSubmatch(item); m != nil {
		name := strings.TrimSpace(m[1])
		return common.Ingredient{Name: name, DisplayText: name + " — " + strings.TrimSpace(m[2])}
	}
	return common.Ingredient{Name: item}
}

// parseLegacyMarkdown 舊版格式：表情符號加粗體標題區分標題、食材、步驟、建議
func (p *Parser) parseLegacyMarkdown(raw string) *common.ParsedRecipe {
	var b recipeBuilder
	sec := sectionNone
	sawSection := false

	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := legacyHeader.FindStringSubmatch(line); m != nil {
			header := strings.TrimSuffix(strings.TrimSpace(m[1]), ":")
			rest := strings.TrimSpace(m[2])
			if s := p.headerSection(header); s != sectionNone {
				sec = s
				sawSection = true
				if rest != "" {
					b.add(sec, rest)
				}
				continue
			}
			if b.recipe.Title == "" {
				b.recipe.Title = header
				if rest != "" {
					b.recipe.Description = rest
				}
				continue
			}
		}
		if sec == sectionNone {
			if b.recipe.Title != "" && b.recipe.Description == "" {
				b.recipe.Description = common.NormalizeSpace(line)
			}
			continue
		}
		b.add(sec, line)
	}
	if !sawSection || b.recipe.Title == "" {
		return nil
	}
	return p.finish(b.build(), "")
}

// parseLineScan 通用逐行掃描：首行為標題，其餘依區段標題或啟發式分類
func (p *Parser) parseLineScan(raw string) *common.ParsedRecipe {
	var b recipeBuilder
	sec := sectionNone

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if s, rest, ok := p.lineHeader(trimmed); ok {
			sec = s
			if rest != "" {
				b.add(sec, rest)
			}
			continue
		}

		if b.recipe.Title == "" {
			if listLine.MatchString(line) {
				return nil
			}
			b.recipe.Title = cleanTitle(trimmed)
			continue
		}

		switch {
		case sec != sectionNone:
			b.add(sec, line)
		case listLine.MatchString(line):
			if p.isStepLine(cleanItem(line)) {
				b.add(sectionSteps, line)
			} else {
				b.add(sectionIngredients, line)
			}
		case len(b.recipe.Ingredients) == 0 && len(b.recipe.Steps) == 0 && b.recipe.Description == "":
			b.recipe.Description = common.NormalizeSpace(trimmed)
		}
	}
	if len(b.recipe.Ingredients) == 0 && len(b.recipe.Steps) == 0 {
		return nil
	}
	return p.finish(b.build(), "")
}

// lineHeader 辨識「Ingredients:」或「Tip: 內容」形式的區段標題
func (p *Parser) lineHeader(line string) (section, string, bool) {
	if listLine.MatchString(line) {
		return sectionNone, "", false
	}
	text := cleanTitle(line)
	head, rest := text, ""
	if i := strings.Index(text, ":"); i >= 0 {
		head, rest = text[:i], strings.TrimSpace(text[i+1:])
	}
	if s := p.headerSection(head); s != sectionNone {
		return s, rest, true
	}
	return sectionNone, "", false
}

// isStepLine 判斷清單項目是步驟還是食材
func (p *Parser) isStepLine(item string) bool {
	n := len([]rune(item))
	words := allergen.Words(p.stripPurpose(item))
	if len(words) == 0 {
		return false
	}
	if p.verbs.ContainsAnyWord(words[:1]).Hit {
		return true
	}
	if n > longStepLine && strings.Count(item, ",") >= 2 {
		return true
	}
	if quantitySplit.MatchString(item) {
		return false
	}
	if n <= shortIngredientLine {
		return false
	}
	return p.verbs.ContainsAnyWord(words).Hit || n > longStepLine
}

// stripPurpose 移除「for frying」「по вкусу」之類的用途子句
func (p *Parser) stripPurpose(item string) string {
	n := " " + allergen.Normalize(item) + " "
	for _, clause := range p.purposes {
		n = strings.ReplaceAll(n, " "+clause+" ", " ")
	}
	return strings.TrimSpace(n)
}
