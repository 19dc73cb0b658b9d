// Package profile 建立生成情境（單人或全家）
package profile

import (
	"fmt"
	"strings"

	"meal-plan-generator/internal/pkg/common"
)

// Mode 生成模式
type Mode string

const (
	ModeSingle Mode = "single"
	ModeFamily Mode = "family"
)

// FamilySelector 代表「全家」的選擇值
const FamilySelector = "family"

// Context 一次生成請求的目標
type Context struct {
	Mode    Mode             `json:"mode"`
	Target  *common.Profile  `json:"target,omitempty"`
	Targets []common.Profile `json:"targets,omitempty"`
}

// Profiles 回傳需要滿足限制的所有成員
func (c Context) Profiles() []common.Profile {
	if c.Mode == ModeFamily {
		return c.Targets
	}
	if c.Target != nil {
		return []common.Profile{*c.Target}
	}
	return nil
}

// IsFamily 是否為全家模式
func (c Context) IsFamily() bool {
	return c.Mode == ModeFamily
}

// MemberID 單人模式回傳成員 ID，全家模式回傳空字串（代表共用）
func (c Context) MemberID() string {
	if c.Mode == ModeSingle && c.Target != nil {
		return c.Target.ID
	}
	return ""
}

// Build 依據選擇與方案建立生成情境。
// selected 為成員 ID 或 "family"；找不到的 ID 退回第一位成員；
// 全家模式僅在方案允許時使用，否則退回單人。
func Build(profiles []common.Profile, selected string, tier common.Tier) (Context, error) {
	defined := dedupe(profiles)
	if len(defined) == 0 {
		return Context{}, common.ErrInvalidRequest.WithMessage("no member profiles")
	}
	for i := range defined {
		if err := validateProfile(defined[i]); err != nil {
			return Context{}, err
		}
	}

	if strings.EqualFold(selected, FamilySelector) && tier.AllowsFamily() {
		return Context{Mode: ModeFamily, Targets: defined}, nil
	}

	target := defined[0]
	for _, p := range defined {
		if p.ID == selected {
			target = p
			break
		}
	}
	return Context{Mode: ModeSingle, Target: &target}, nil
}

// dedupe 依 ID 去重，忽略沒有 ID 的成員
func dedupe(profiles []common.Profile) []common.Profile {
	seen := make(map[string]bool, len(profiles))
	out := make([]common.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

func validateProfile(p common.Profile) error {
	if p.AgeMonths != nil && *p.AgeMonths < 0 {
		return common.ErrInvalidRequest.WithMessage(fmt.Sprintf("profile %s: age must not be negative", p.ID))
	}
	return nil
}

// FormatAge 將月齡轉為可讀字串
func FormatAge(months *int) string {
	if months == nil {
		return ""
	}
	m := *months
	if m < 12 {
		return fmt.Sprintf("%d mo", m)
	}
	years, rest := m/12, m%12
	if rest == 0 || years >= 6 {
		return fmt.Sprintf("%d y", years)
	}
	return fmt.Sprintf("%d y %d mo", years, rest)
}
