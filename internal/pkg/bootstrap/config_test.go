package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigLeaseAndInterval(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 60*time.Second, cfg.Inventory.Lease)
	assert.Equal(t, 60*time.Second, cfg.Inventory.ReconcileInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svc.yaml")
	content := `
app:
  port: 9090
inventory:
  ledgerBackend: redis
  storeBackend: memory
  lease: 2m
  reconcileInterval: 30s
  reconcileBatch: 50
  admissionRule: "quantity <= 10"
infra:
  kafka:
    enabled: true
    brokers: "k1:9092, k2:9092"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "redis", cfg.Inventory.LedgerBackend)
	assert.Equal(t, "memory", cfg.Inventory.StoreBackend)
	assert.Equal(t, 2*time.Minute, cfg.Inventory.Lease)
	assert.Equal(t, 30*time.Second, cfg.Inventory.ReconcileInterval)
	assert.Equal(t, 50, cfg.Inventory.ReconcileBatch)
	assert.Equal(t, "quantity <= 10", cfg.Inventory.AdmissionRule)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Infra.Kafka.BrokerList())
	// 未出现在文件中的字段保留默认值
	assert.Equal(t, "product-events", cfg.Infra.Kafka.ProductEventsTopic)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7001")
	t.Setenv("LEDGER_BACKEND", "memory")
	t.Setenv("RESERVATION_STORE_BACKEND", "memory")
	t.Setenv("RESERVATION_LEASE", "5s")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("INVENTORY_URL", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.App.Port)
	assert.Equal(t, "memory", cfg.Inventory.LedgerBackend)
	assert.Equal(t, 5*time.Second, cfg.Inventory.Lease)
	assert.False(t, cfg.Infra.Kafka.Enabled)
	assert.Empty(t, cfg.Checkout.InventoryURL)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Inventory.LedgerBackend = "mongo"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Inventory.Lease = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGetCurrentConfigFallsBackToDefault(t *testing.T) {
	currentConfig.Store(nil)
	assert.Equal(t, DefaultConfig().App.Name, GetCurrentConfig().App.Name)

	cfg := DefaultConfig()
	cfg.App.Name = "custom"
	SetCurrentConfig(cfg)
	defer currentConfig.Store(nil)
	assert.Equal(t, "custom", GetCurrentConfig().App.Name)
}
