package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("PRINTER_MODE", "log")
	t.Setenv("REQUIRE_VOID_REASON", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "log", cfg.PrinterMode)
	assert.True(t, cfg.RequireVoidReason)
	assert.Equal(t, 10, cfg.PrinterTimeoutSeconds)
	assert.Equal(t, "cash", cfg.CashPaymentType)
	assert.Equal(t, 42, cfg.ReceiptWidth)
}

func TestOrgAddressLines(t *testing.T) {
	c := &Config{OrgAddress: "1 Quay Street | | Bristol BS1 "}
	assert.Equal(t, []string{"1 Quay Street", "Bristol BS1"}, c.OrgAddressLines())
	assert.Nil(t, (&Config{}).OrgAddressLines())
}

func TestCORSOriginList(t *testing.T) {
	assert.Equal(t, []string{"*"}, (&Config{}).CORSOriginList())
	assert.Equal(t, []string{"http://a", "http://b"}, (&Config{CORSOrigins: "http://a, http://b,"}).CORSOriginList())
}
