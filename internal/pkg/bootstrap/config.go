// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是 product-service 的完整配置树。
type Config struct {
	App       AppConfig       `yaml:"app"`
	Inventory InventoryConfig `yaml:"inventory"`
	Checkout  CheckoutConfig  `yaml:"checkout"`
	Infra     InfraConfig     `yaml:"infra"`
}

type AppConfig struct {
	Name      string `yaml:"name"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogPretty bool   `yaml:"logPretty"`
}

// InventoryConfig 描述预占引擎与过期回收器。
type InventoryConfig struct {
	// LedgerBackend: mysql | redis | memory
	LedgerBackend string `yaml:"ledgerBackend"`
	// StoreBackend: mysql | memory
	StoreBackend string `yaml:"storeBackend"`

	Lease             time.Duration `yaml:"lease"`
	ReconcileInterval time.Duration `yaml:"reconcileInterval"`
	ReconcileBatch    int           `yaml:"reconcileBatch"`

	// AdmissionRule 是可选的 CEL 表达式，例如 "quantity <= 10"。
	AdmissionRule string `yaml:"admissionRule"`
}

// CheckoutConfig 是订单侧服务的配置。InventoryURL 为空时通过 Nacos 发现 product-service。
type CheckoutConfig struct {
	Port         int           `yaml:"port"`
	InventoryURL string        `yaml:"inventoryUrl"`
	Timeout      time.Duration `yaml:"timeout"`
}

type InfraConfig struct {
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
}

type MySQLConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"maxOpenConns"`
	MaxIdleConns int    `yaml:"maxIdleConns"`
	AutoMigrate  bool   `yaml:"autoMigrate"`
}

type RedisConfig struct {
	Addrs string `yaml:"addrs"`
}

type KafkaConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Brokers            string `yaml:"brokers"`
	ProductEventsTopic string `yaml:"productEventsTopic"`
	OrderStatusTopic   string `yaml:"orderStatusTopic"`
	ConsumerGroup      string `yaml:"consumerGroup"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type ZookeeperConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Servers        string        `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
}

// BrokerList 把逗号分隔的 broker 地址拆成切片。
func (k KafkaConfig) BrokerList() []string {
	return splitAndTrim(k.Brokers)
}

func (z ZookeeperConfig) ServerList() []string {
	return splitAndTrim(z.Servers)
}

var currentConfig atomic.Pointer[Config]

// DefaultConfig 返回与线上默认值一致的配置：租约与回收周期均为 60s。
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:     "product-service",
			Port:     8085,
			LogLevel: "info",
		},
		Inventory: InventoryConfig{
			LedgerBackend:     "mysql",
			StoreBackend:      "mysql",
			Lease:             60 * time.Second,
			ReconcileInterval: 60 * time.Second,
			ReconcileBatch:    500,
		},
		Checkout: CheckoutConfig{
			Port:         8081,
			InventoryURL: "http://localhost:8085",
			Timeout:      5 * time.Second,
		},
		Infra: InfraConfig{
			MySQL: MySQLConfig{
				DSN:          "root:root@tcp(localhost:3306)/product_db?charset=utf8mb4&parseTime=True&loc=UTC",
				MaxOpenConns: 30,
				MaxIdleConns: 10,
				AutoMigrate:  true,
			},
			Redis: RedisConfig{Addrs: "localhost:6379"},
			Kafka: KafkaConfig{
				Brokers:            "localhost:9092",
				ProductEventsTopic: "product-events",
				OrderStatusTopic:   "order-status-events",
				ConsumerGroup:      "product-service-order-status",
			},
			Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Nacos: NacosConfig{
				ServerAddrs: "localhost:8848",
				Group:       "DEFAULT_GROUP",
			},
			Zookeeper: ZookeeperConfig{
				Servers:        "localhost:2181",
				SessionTimeout: 10 * time.Second,
			},
		},
	}
}

// LoadConfig 读取 YAML 文件（path 为空时只用默认值），再应用环境变量覆盖。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查会导致运行期错误的配置。
func (c *Config) Validate() error {
	switch c.Inventory.LedgerBackend {
	case "mysql", "redis", "memory":
	default:
		return errors.Errorf("unknown ledger backend %q", c.Inventory.LedgerBackend)
	}
	switch c.Inventory.StoreBackend {
	case "mysql", "memory":
	default:
		return errors.Errorf("unknown reservation store backend %q", c.Inventory.StoreBackend)
	}
	if c.Inventory.Lease <= 0 {
		return errors.New("inventory.lease must be positive")
	}
	if c.Inventory.ReconcileInterval <= 0 {
		return errors.New("inventory.reconcileInterval must be positive")
	}
	if c.Inventory.ReconcileBatch <= 0 {
		return errors.New("inventory.reconcileBatch must be positive")
	}
	if c.App.Port <= 0 {
		return errors.New("app.port must be positive")
	}
	return nil
}

// Init 从 CONFIG_PATH 加载配置并设为当前配置，失败即退出进程。
func Init() *Config {
	cfg, err := LoadConfig(getEnv("CONFIG_PATH", ""))
	if err != nil {
		panic(err)
	}
	SetCurrentConfig(cfg)
	return cfg
}

func SetCurrentConfig(cfg *Config) {
	currentConfig.Store(cfg)
}

// GetCurrentConfig 返回当前生效的配置，未初始化时返回默认配置。
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	return DefaultConfig()
}

func applyEnvOverrides(cfg *Config) {
	cfg.App.Port = getEnvInt("PORT", cfg.App.Port)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)

	cfg.Inventory.LedgerBackend = getEnv("LEDGER_BACKEND", cfg.Inventory.LedgerBackend)
	cfg.Inventory.StoreBackend = getEnv("RESERVATION_STORE_BACKEND", cfg.Inventory.StoreBackend)
	cfg.Inventory.Lease = getEnvDuration("RESERVATION_LEASE", cfg.Inventory.Lease)
	cfg.Inventory.ReconcileInterval = getEnvDuration("RECONCILE_INTERVAL", cfg.Inventory.ReconcileInterval)
	cfg.Inventory.AdmissionRule = getEnv("RESERVATION_ADMISSION_RULE", cfg.Inventory.AdmissionRule)

	cfg.Checkout.Port = getEnvInt("CHECKOUT_PORT", cfg.Checkout.Port)
	cfg.Checkout.InventoryURL = getEnv("INVENTORY_URL", cfg.Checkout.InventoryURL)

	cfg.Infra.MySQL.DSN = getEnv("MYSQL_DSN", cfg.Infra.MySQL.DSN)
	cfg.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", cfg.Infra.Redis.Addrs)
	cfg.Infra.Kafka.Brokers = getEnv("KAFKA_BROKERS", cfg.Infra.Kafka.Brokers)
	cfg.Infra.Kafka.Enabled = getEnvBool("KAFKA_ENABLED", cfg.Infra.Kafka.Enabled)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Nacos.Enabled = getEnvBool("NACOS_ENABLED", cfg.Infra.Nacos.Enabled)
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.ServerAddrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	cfg.Infra.Zookeeper.Enabled = getEnvBool("ZOOKEEPER_ENABLED", cfg.Infra.Zookeeper.Enabled)
	cfg.Infra.Zookeeper.Servers = getEnv("ZOOKEEPER_SERVERS", cfg.Infra.Zookeeper.Servers)
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
