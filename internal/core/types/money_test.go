package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound_HalfUp(t *testing.T) {
	assert.Equal(t, "1.01", Round(MustMoney("1.005")).StringFixed(2))
	assert.Equal(t, "1.00", Round(MustMoney("1.004")).StringFixed(2))
	assert.Equal(t, "2.50", Round(MustMoney("2.495")).StringFixed(2))
}

func TestPercent(t *testing.T) {
	assert.True(t, Percent(MustMoney("300.00"), MustMoney("14")).Equal(MustMoney("42.00")))
	assert.True(t, Percent(MustMoney("342.00"), MustMoney("10")).Equal(MustMoney("34.20")))
	// 33.33 * 7.5% = 2.49975 -> 2.50
	assert.True(t, Percent(MustMoney("33.33"), MustMoney("7.5")).Equal(MustMoney("2.50")))
}

func TestTimes(t *testing.T) {
	assert.True(t, Times(MustMoney("100.00"), 3).Equal(MustMoney("300")))
	assert.True(t, Times(MustMoney("0.335"), 1).Equal(MustMoney("0.34")))
}

func TestIsValidPercent(t *testing.T) {
	assert.True(t, IsValidPercent(MustMoney("100")))
	assert.True(t, IsValidPercent(MustMoney("0.5")))
	assert.False(t, IsValidPercent(MustMoney("100.01")))
	assert.False(t, IsValidPercent(Zero()))
}

func TestMin(t *testing.T) {
	assert.True(t, Min(MustMoney("50"), MustMoney("20")).Equal(MustMoney("20")))
	assert.True(t, Min(MustMoney("5"), MustMoney("20")).Equal(MustMoney("5")))
}
