package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sublinear-mpc/matching/pkg/config"
)

func TestDeriveS_FromAlphaAndN(t *testing.T) {
	s := deriveS(config.RunConfig{N: 1000000, Alpha: 0.5, SafetyFactor: 1.0, MemFloor: 10})
	assert.Equal(t, 1000000, s)
}

func TestDeriveS_SafetyFactorDoesNotAffectS(t *testing.T) {
	// SafetyFactor only throttles the driver's adaptive sampling probability
	// (driver.Config.SafetyFactor); it must not scale the derived S.
	s := deriveS(config.RunConfig{N: 1000000, Alpha: 0.5, SafetyFactor: 2.0, MemFloor: 10})
	assert.Equal(t, 1000000, s)
}

func TestDeriveS_MemGBOverridesAlpha(t *testing.T) {
	s := deriveS(config.RunConfig{N: 1000000, Alpha: 0.5, MemGB: 1, MemFloor: 10})
	assert.Greater(t, s, 1000)
}

func TestDeriveS_FallsBackToMemFloorWhenNUnknown(t *testing.T) {
	s := deriveS(config.RunConfig{MemFloor: 2000})
	assert.Equal(t, 2000, s)
}

func TestDeriveS_NeverBelowMemFloor(t *testing.T) {
	s := deriveS(config.RunConfig{N: 10, Alpha: 0.1, SafetyFactor: 1.0, MemFloor: 2000})
	assert.Equal(t, 2000, s)
}

func TestDeriveR_FromN(t *testing.T) {
	r := deriveR(config.RunConfig{N: 1000000})
	assert.Equal(t, 3, r)
}

func TestDeriveR_FallsBackToMinimumWhenNUnknown(t *testing.T) {
	r := deriveR(config.RunConfig{})
	assert.Equal(t, 2, r)
}

func TestDeriveR_NeverBelowTwo(t *testing.T) {
	r := deriveR(config.RunConfig{N: 10})
	assert.Equal(t, 2, r)
}

func TestDeriveR_RoundsFlagOverridesN(t *testing.T) {
	r := deriveR(config.RunConfig{N: 1000000, Rounds: 5})
	assert.Equal(t, 5, r)
}
