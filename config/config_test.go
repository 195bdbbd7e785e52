package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gridbot/grid"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("BACKPACK_API_KEY", "key")
	t.Setenv("BACKPACK_API_SECRET", "secret")
}

func TestInitRequiresCredentials(t *testing.T) {
	t.Setenv("BACKPACK_API_KEY", "")
	t.Setenv("BACKPACK_API_SECRET", "")
	require.Error(t, Init())
}

func TestInitDefaults(t *testing.T) {
	setRequiredEnv(t)
	require.NoError(t, Init())

	cfg := Get()
	require.Equal(t, "https://api.backpack.exchange", cfg.BaseURL)
	require.Equal(t, "wss://ws.backpack.exchange", cfg.WSURL)
	require.Equal(t, 8080, cfg.APIServerPort)
	require.Equal(t, 10*time.Second, cfg.CheckInterval)
	require.Equal(t, 30*time.Second, cfg.ResyncInterval)
	require.Equal(t, "flatten", cfg.ShutdownMode)
}

func TestInitOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BACKPACK_BASE_URL", "https://testnet.example/")
	t.Setenv("API_SERVER_PORT", "9090")
	t.Setenv("CHECK_INTERVAL_SECONDS", "5")
	t.Setenv("SHUTDOWN_MODE", "pause")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	require.NoError(t, Init())

	cfg := Get()
	require.Equal(t, "https://testnet.example", cfg.BaseURL)
	require.Equal(t, 9090, cfg.APIServerPort)
	require.Equal(t, 5*time.Second, cfg.CheckInterval)
	require.Equal(t, "pause", cfg.ShutdownMode)
	require.EqualValues(t, -100123, cfg.TelegramChatID)
}

func writeStrategies(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadStrategies(t *testing.T) {
	path := writeStrategies(t, `[
		{"symbol":"BTC_USDC_PERP","grid_num":20,"upper_price":70000,"lower_price":50000,
		 "total_investment":2000,"grid_spread":0.01},
		{"symbol":"SOL_USDC_PERP","mode":"position","total_investment":500}
	]`)

	got, err := LoadStrategies(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	btc := got[0]
	require.Equal(t, grid.ModeGrid, btc.Mode, "mode defaults to grid")
	require.Equal(t, 20, btc.LevelCount)
	require.Equal(t, 30, btc.CooldownMinutes, "cooldown defaulted")

	sol := got[1]
	require.Equal(t, grid.ModePosition, sol.Mode)
	require.Equal(t, 3, sol.MaxLeverage, "leverage defaulted")
}

func TestLoadStrategiesSkipsInvalid(t *testing.T) {
	path := writeStrategies(t, `[
		{"symbol":"","grid_num":10},
		{"symbol":"ETH_USDC_PERP","grid_num":10,"upper_price":3000,"lower_price":2500},
		{"symbol":"ETH_USDC_PERP","grid_num":10,"upper_price":3000,"lower_price":2500}
	]`)

	got, err := LoadStrategies(path)
	require.NoError(t, err)
	require.Len(t, got, 1, "empty symbol and duplicate dropped")
	require.Equal(t, "ETH_USDC_PERP", got[0].Symbol)
}

func TestLoadStrategiesAllInvalid(t *testing.T) {
	path := writeStrategies(t, `[{"symbol":"","grid_num":1}]`)
	_, err := LoadStrategies(path)
	require.Error(t, err)
}

func TestLoadStrategiesMissingFile(t *testing.T) {
	_, err := LoadStrategies(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
