package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"proxy-rotator/pkg/rotator/core"
	"proxy-rotator/pkg/rotator/core/types"
)

type Config struct {
	Rotator   *core.Config      `yaml:"rotator"`
	Endpoints []*types.Endpoint `yaml:"endpoints"` // 静态种子 endpoint
	Etcd      *ETCDConfig       `yaml:"etcd"`
	Redis     *RedisConfig      `yaml:"redis"`
	Storage   *StorageConfig    `yaml:"storage"`
	API       *APIConfig        `yaml:"api"`
	Metrics   *MetricsConfig    `yaml:"metrics"`
	Log       *LogConfig        `yaml:"log"`
}

// ETCDConfig etcd 集群配置，endpoint 供给源
type ETCDConfig struct {
	Endpoints   []string      `yaml:"endpoints"`   // etcd 的地址
	DialTimeout time.Duration `yaml:"dialTimeout"` // etcd 的连接超时时间
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	Prefix      string        `yaml:"prefix"` // 监听的 key 前缀
}

// RedisConfig redis 配置
type RedisConfig struct {
	Url string `yaml:"url"` // redis 的地址
}

// StorageConfig 快照持久化配置
type StorageConfig struct {
	Type             string        `yaml:"type"` // "sqlite" / "redis" / 空表示不持久化
	Path             string        `yaml:"path"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

type APIConfig struct {
	Addr string `yaml:"addr"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// LoadConfig 加载配置
func LoadConfig(configPath string) (*Config, error) {
	var cfg Config
	var yamlBytes []byte

	if b, err := os.ReadFile(configPath); err != nil {
		return nil, err
	} else {
		// 扩充环境变量
		yamlBytes = []byte(os.ExpandEnv(string(b)))
	}

	if err := yaml.Unmarshal(yamlBytes, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
