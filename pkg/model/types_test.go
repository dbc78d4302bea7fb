package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quotawatch/quotawatch/pkg/model"
)

func TestFailedUsage_Sentinels(t *testing.T) {
	acc := model.Account{Number: "0101234567", Label: "Home"}
	raw := model.FailedUsage(acc)

	assert.True(t, raw.Failed)
	assert.Equal(t, acc, raw.Account)
	assert.Equal(t, model.TextError, raw.BalanceText)
	assert.Equal(t, model.TextZero, raw.RemainingText)
	assert.Equal(t, model.TextZero, raw.UsedText)
	assert.Equal(t, model.TextError, raw.AddonNames)
	assert.Equal(t, model.TextZero, raw.RenewalCostText)
	assert.Empty(t, raw.RenewalDateText)
}

func TestAccount_DisplayName(t *testing.T) {
	assert.Equal(t, "Home", model.Account{Number: "0101234567", Label: "Home"}.DisplayName())
	assert.Equal(t, "0101234567", model.Account{Number: "0101234567"}.DisplayName())
}

func TestRun_FailureCounts(t *testing.T) {
	run := model.Run{Records: []model.Usage{
		{Success: true},
		{Success: false},
		{Success: true},
	}}

	assert.Equal(t, 1, run.FailedCount())
	assert.True(t, run.PartiallyFailed())
	assert.False(t, run.AllFailed())
}

func TestRun_AllFailed(t *testing.T) {
	run := model.Run{Records: []model.Usage{{Success: false}, {Success: false}}}

	assert.True(t, run.AllFailed())
	assert.False(t, run.PartiallyFailed())
}

func TestRun_Empty(t *testing.T) {
	var run model.Run

	assert.False(t, run.AllFailed())
	assert.False(t, run.PartiallyFailed())
	assert.Zero(t, run.FailedCount())
}
