package profile

import (
	"testing"

	"meal-plan-generator/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func members() []common.Profile {
	return []common.Profile{
		{ID: "kid", Role: common.RoleChild, Name: "Mia", AgeMonths: intPtr(18), Allergies: []string{"milk"}, Dislikes: []string{"onion"}},
		{ID: "dad", Role: common.RoleAdult, Name: "Tom", AgeMonths: intPtr(420), Allergies: []string{"peanut", "Milk"}, Preferences: []string{"vegetarian"}},
		{ID: "kid", Name: "duplicate"},
		{Name: "no id"},
	}
}

func TestBuildSingleFallsBackToFirst(t *testing.T) {
	ctx, err := Build(members(), "unknown", common.TierFree)
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, ctx.Mode)
	require.NotNil(t, ctx.Target)
	assert.Equal(t, "kid", ctx.Target.ID)
	assert.Len(t, ctx.Profiles(), 1)
	assert.Equal(t, "kid", ctx.MemberID())
}

func TestBuildSingleSelected(t *testing.T) {
	ctx, err := Build(members(), "dad", common.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, "dad", ctx.Target.ID)
}

func TestBuildFamilyRequiresTier(t *testing.T) {
	ctx, err := Build(members(), "family", common.TierFree)
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, ctx.Mode)

	ctx, err = Build(members(), "family", common.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, ModeFamily, ctx.Mode)
	assert.Len(t, ctx.Targets, 2, "duplicates and id-less profiles are dropped")
	assert.Equal(t, "", ctx.MemberID())
	assert.True(t, ctx.IsFamily())
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(nil, "", common.TierPremium)
	assert.ErrorIs(t, err, common.ErrInvalidRequest)

	_, err = Build([]common.Profile{{ID: "x", AgeMonths: intPtr(-1)}}, "x", common.TierFree)
	assert.ErrorIs(t, err, common.ErrInvalidRequest)
}

func TestDerivePayloadFamily(t *testing.T) {
	ctx, err := Build(members(), "family", common.TierPremium)
	require.NoError(t, err)

	p := DerivePayload(ctx)
	assert.True(t, p.TargetIsFamily)
	assert.Len(t, p.AllMembers, 2)
	require.NotNil(t, p.MemberData.AgeMonths)
	assert.Equal(t, 18, *p.MemberData.AgeMonths)
	assert.Equal(t, []string{"milk", "peanut"}, p.MemberData.Allergies)
	assert.Equal(t, []string{"onion"}, p.MemberData.Dislikes)
}

func TestDerivePayloadSingle(t *testing.T) {
	ctx, err := Build(members(), "dad", common.TierFree)
	require.NoError(t, err)
	p := DerivePayload(ctx)
	assert.False(t, p.TargetIsFamily)
	assert.Equal(t, "Tom", p.MemberData.Name)
	assert.Empty(t, p.AllMembers)
	assert.NotNil(t, p.MemberData.Likes)
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "", FormatAge(nil))
	assert.Equal(t, "8 mo", FormatAge(intPtr(8)))
	assert.Equal(t, "2 y", FormatAge(intPtr(24)))
	assert.Equal(t, "1 y 6 mo", FormatAge(intPtr(18)))
	assert.Equal(t, "35 y", FormatAge(intPtr(425)))
}
