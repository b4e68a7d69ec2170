package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config robot-report-sync 服务配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	Vendor VendorConfig
	Sync   SyncConfig
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// VendorConfig 厂家开放平台配置
type VendorConfig struct {
	BaseURL string // 厂家 API 基础地址
	AppKey  string // HMAC 签名 key（Authorization 头中的 id）
	Secret  string // HMAC 签名密钥
}

// SyncConfig 报告同步配置
type SyncConfig struct {
	IntervalHours  int // 定时同步周期（小时，默认 3；同步窗口与周期等长）
	PageSize       int // 厂家列表接口分页大小（默认 20）
	BatchSize      int // 批量入库阈值（默认 50）
	DetailWorkers  int // 详情解析并发 worker 数（默认 10）
	DetailQueue    int // 详情任务队列长度（默认 20，满时退化为调用方执行）
	StoreWorkers   int // 历史回填时并发同步的门店数上限（默认 4）
	TimezoneOffset int // 上报给厂家的时区偏移（分钟，默认 480 即 UTC+8）
	HistoryDays    int // 历史回填默认天数（默认 180）
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "robotreports")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// 厂家开放平台配置
	cfg.Vendor.BaseURL = getEnv("VENDOR_BASE_URL", "https://open.example-robot.com")
	cfg.Vendor.AppKey = getEnv("VENDOR_APP_KEY", "")
	cfg.Vendor.Secret = getEnv("VENDOR_SECRET", "")

	// 同步配置
	cfg.Sync.IntervalHours = parseInt(getEnv("SYNC_INTERVAL_HOURS", "3"), 3)
	cfg.Sync.PageSize = parseInt(getEnv("SYNC_PAGE_SIZE", "20"), 20)
	cfg.Sync.BatchSize = parseInt(getEnv("SYNC_BATCH_SIZE", "50"), 50)
	cfg.Sync.DetailWorkers = parseInt(getEnv("SYNC_DETAIL_WORKERS", "10"), 10)
	cfg.Sync.DetailQueue = parseInt(getEnv("SYNC_DETAIL_QUEUE", "20"), 20)
	cfg.Sync.StoreWorkers = parseInt(getEnv("SYNC_STORE_WORKERS", "4"), 4)
	cfg.Sync.TimezoneOffset = parseInt(getEnv("SYNC_TIMEZONE_OFFSET", "480"), 480) // 默认 UTC+8
	cfg.Sync.HistoryDays = parseInt(getEnv("SYNC_HISTORY_DAYS", "180"), 180)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
