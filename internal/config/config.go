package config

import (
	"github.com/coldbrew/cps/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chains   []ChainConfig  `mapstructure:"chains"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ChainConfig 单链配置
type ChainConfig struct {
	ChainId         int64    `mapstructure:"chain_id"`         // 链ID
	Name            string   `mapstructure:"name"`             // 链名称
	RpcUrls         []string `mapstructure:"rpc_urls"`         // RPC节点列表，按顺序故障转移
	RegistryAddress string   `mapstructure:"registry_address"` // 发票登记合约地址
	PrivateKey      string   `mapstructure:"private_key"`      // 提交交易用私钥（可选）
}

// ScanConfig 转账扫描配置
type ScanConfig struct {
	LookbackBlocks int64 `mapstructure:"lookback_blocks"` // 首次扫描回溯区块数
	Interval       int   `mapstructure:"interval"`        // 同步任务间隔（秒）
	Workers        int   `mapstructure:"workers"`         // 同步任务并发数上限
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/cps")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "payments")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("scan.lookback_blocks", 5000)
	viper.SetDefault("scan.interval", 60)
	viper.SetDefault("scan.workers", 4)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}

// ChainById 按链ID查找链配置
func (c *Config) ChainById(chainId int64) (ChainConfig, bool) {
	for _, chain := range c.Chains {
		if chain.ChainId == chainId {
			return chain, true
		}
	}
	return ChainConfig{}, false
}
