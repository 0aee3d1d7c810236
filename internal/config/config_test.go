package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.EnabledVenues(), len(DefaultVenues))
}

func TestValidateRejectsEmptySymbol(t *testing.T) {
	cfg := Default()
	cfg.Symbol = "  "
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNoEnabledVenues(t *testing.T) {
	cfg := Default()
	for id, vc := range cfg.Venues {
		vc.Enabled = false
		cfg.Venues[id] = vc
	}
	assert.Error(t, cfg.Validate())
}

func TestLoadToleratesMissingConfigFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.NotEmpty(t, cfg.Venues)
}
