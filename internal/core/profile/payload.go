package profile

import (
	"strings"

	"meal-plan-generator/internal/pkg/common"
)

// Payload 給遠端生成器的結構化資料
type Payload struct {
	MemberData     MemberData   `json:"memberData"`
	AllMembers     []MemberData `json:"allMembers,omitempty"`
	TargetIsFamily bool         `json:"targetIsFamily"`
}

// MemberData 成員的限制摘要
type MemberData struct {
	Name        string   `json:"name"`
	AgeMonths   *int     `json:"ageMonths,omitempty"`
	Allergies   []string `json:"allergies"`
	Preferences []string `json:"preferences"`
	Likes       []string `json:"likes"`
	Dislikes    []string `json:"dislikes"`
}

func memberData(p common.Profile) MemberData {
	return MemberData{
		Name:        p.Name,
		AgeMonths:   p.AgeMonths,
		Allergies:   nonNil(p.Allergies),
		Preferences: nonNil(p.Preferences),
		Likes:       nonNil(p.Likes),
		Dislikes:    nonNil(p.Dislikes),
	}
}

// DerivePayload 由情境推導結構化資料；全家模式合成一位「全家」成員，
// 年齡取最小、過敏與不喜歡取聯集
func DerivePayload(c Context) Payload {
	if !c.IsFamily() {
		if c.Target == nil {
			return Payload{}
		}
		return Payload{MemberData: memberData(*c.Target)}
	}

	agg := MemberData{Name: "Family"}
	all := make([]MemberData, 0, len(c.Targets))
	for _, p := range c.Targets {
		all = append(all, memberData(p))
		if p.AgeMonths != nil && (agg.AgeMonths == nil || *p.AgeMonths < *agg.AgeMonths) {
			age := *p.AgeMonths
			agg.AgeMonths = &age
		}
		agg.Allergies = union(agg.Allergies, p.Allergies)
		agg.Preferences = union(agg.Preferences, p.Preferences)
		agg.Dislikes = union(agg.Dislikes, p.Dislikes)
	}
	agg.Allergies = nonNil(agg.Allergies)
	agg.Preferences = nonNil(agg.Preferences)
	agg.Likes = []string{}
	agg.Dislikes = nonNil(agg.Dislikes)

	return Payload{MemberData: agg, AllMembers: all, TargetIsFamily: true}
}

// union 以不分大小寫去重的方式合併
func union(dst, items []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, d := range dst {
		seen[strings.ToLower(strings.TrimSpace(d))] = true
	}
	for _, it := range items {
		k := strings.ToLower(strings.TrimSpace(it))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		dst = append(dst, strings.TrimSpace(it))
	}
	return dst
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
