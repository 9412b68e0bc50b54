// internal/pkg/config/config.go
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Duration 让配置文件可以写 "5s" / "10m" 这类字面量
// yaml.v3 本身不识别 time.Duration
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std 转回标准库类型
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config 是整个服务的配置根
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Infra     InfraConfig     `yaml:"infra"`
	FlashSale FlashSaleConfig `yaml:"flashSale"`
}

type ServiceConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
}

type InfraConfig struct {
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type MySQLConfig struct {
	Addr     string `yaml:"addr"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	DLQTopic string   `yaml:"dlqTopic"`
	GroupID  string   `yaml:"groupId"`
}

type ZookeeperConfig struct {
	Servers        []string `yaml:"servers"`
	SessionTimeout Duration `yaml:"sessionTimeout"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

// FlashSaleConfig 是秒杀子系统自身的参数
type FlashSaleConfig struct {
	// LockTimeout 是分布式锁的最大等待时间，超时视为并发冲突
	LockTimeout Duration `yaml:"lockTimeout"`
	// PreOrderTTL 是预下单令牌在 Redis 中的存活时间
	PreOrderTTL Duration `yaml:"preOrderTTL"`
	// CurrentResultTTL 是当前结果缓存条目的存活时间
	CurrentResultTTL Duration     `yaml:"currentResultTTL"`
	Outbox           OutboxConfig `yaml:"outbox"`
}

type OutboxConfig struct {
	// PollInterval 是中继 worker 的轮询间隔
	PollInterval Duration `yaml:"pollInterval"`
	// MaxRetries 是单个补偿任务的最大重试次数，超过后标记失败并告警日志
	MaxRetries int `yaml:"maxRetries"`
	BatchSize  int `yaml:"batchSize"`
}

var (
	mu      sync.RWMutex
	current *Config
)

// Load 从 yaml 文件加载配置并填充默认值
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()

	mu.Lock()
	current = cfg
	mu.Unlock()

	return cfg, nil
}

// GetCurrentConfig 返回最近一次 Load 的配置
// 在 Load 之前调用会返回带默认值的空配置，方便单测
func GetCurrentConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		cfg := &Config{}
		cfg.applyDefaults()
		return cfg
	}
	return current
}

func (c *Config) applyDefaults() {
	if c.Service.LogLevel == "" {
		c.Service.LogLevel = "info"
	}
	if c.Infra.Zookeeper.SessionTimeout <= 0 {
		c.Infra.Zookeeper.SessionTimeout = Duration(5 * time.Second)
	}
	if c.FlashSale.LockTimeout <= 0 {
		c.FlashSale.LockTimeout = Duration(3 * time.Second)
	}
	if c.FlashSale.PreOrderTTL <= 0 {
		c.FlashSale.PreOrderTTL = Duration(10 * time.Minute)
	}
	if c.FlashSale.CurrentResultTTL <= 0 {
		c.FlashSale.CurrentResultTTL = Duration(30 * time.Minute)
	}
	if c.FlashSale.Outbox.PollInterval <= 0 {
		c.FlashSale.Outbox.PollInterval = Duration(2 * time.Second)
	}
	if c.FlashSale.Outbox.MaxRetries <= 0 {
		c.FlashSale.Outbox.MaxRetries = 5
	}
	if c.FlashSale.Outbox.BatchSize <= 0 {
		c.FlashSale.Outbox.BatchSize = 32
	}
}

// MySQLDSN 由配置拼出 go-sql-driver 的 DSN
func (c *Config) MySQLDSN() string {
	mc := mysql.NewConfig()
	mc.User = c.Infra.MySQL.User
	mc.Passwd = c.Infra.MySQL.Password
	mc.Net = "tcp"
	mc.Addr = c.Infra.MySQL.Addr
	mc.DBName = c.Infra.MySQL.Database
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}
