package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config 服务配置
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Storage  StorageConfig  `toml:"storage"`
	Upload   UploadConfig   `toml:"upload"`
	Listing  ListingConfig  `toml:"listing"`
	Report   ReportConfig   `toml:"report"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `toml:"type"` // sqlite, postgres
	DSN  string `toml:"dsn"`  // data source name
}

// StorageConfig selects the object store used for run results and attachments.
type StorageConfig struct {
	Type              string `toml:"type"` // local, s3
	LocalDir          string `toml:"local_dir"`
	Endpoint          string `toml:"endpoint"` // host:port of an S3-compatible server (MinIO)
	Region            string `toml:"region"`
	AccessKey         string `toml:"access_key"`
	SecretKey         string `toml:"secret_key"`
	UseSSL            bool   `toml:"use_ssl"`
	ResultsBucket     string `toml:"results_bucket"`
	AttachmentsBucket string `toml:"attachments_bucket"`
	ReportsBucket     string `toml:"reports_bucket"`
}

// UploadConfig limits run result uploads.
type UploadConfig struct {
	MaxTotalSize      int64    `toml:"max_total_size"` // bytes
	AllowedExtensions []string `toml:"allowed_extensions"`
}

// ListingConfig 列表分页配置
type ListingConfig struct {
	DefaultLimit      int `toml:"default_limit"`
	MaxLimit          int `toml:"max_limit"`
	TestCasePageLimit int `toml:"test_case_page_limit"`
}

// ReportConfig 报告生成配置
type ReportConfig struct {
	AllureBinary string `toml:"allure_binary"`
	WorkDir      string `toml:"work_dir"` // temp dir root, empty means os.TempDir
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, text
}

// LoadConfig 加载配置文件
func LoadConfig(path string) (*Config, error) {
	var config Config

	// 读取配置文件
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 解析TOML
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()
	return &config, nil
}

// LoadConfigOrDefault loads path, falling back to defaults when the file is missing.
func LoadConfigOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return Default(), nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var config Config
	config.applyEnv()
	config.applyDefaults()
	return &config
}

// LoadDotEnv loads KEY=value files into the environment before the config is
// read. Missing files are skipped and variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_TYPE"); v != "" {
		c.Database.Type = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Storage.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Storage.SecretKey = v
	}
	if v := os.Getenv("ALLURE_BINARY"); v != "" {
		c.Report.AllureBinary = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// 设置默认值
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "./data/testops.db"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "./data/objects"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Storage.ResultsBucket == "" {
		c.Storage.ResultsBucket = "allure-results-bucket"
	}
	if c.Storage.AttachmentsBucket == "" {
		c.Storage.AttachmentsBucket = "testcase-files-bucket"
	}
	if c.Storage.ReportsBucket == "" {
		c.Storage.ReportsBucket = "allure-reports-bucket"
	}
	if c.Report.AllureBinary == "" {
		c.Report.AllureBinary = "allure"
	}
	if c.Upload.MaxTotalSize == 0 {
		c.Upload.MaxTotalSize = 50 << 20
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = []string{"html", "json", "txt", "properties"}
	}
	for i, ext := range c.Upload.AllowedExtensions {
		c.Upload.AllowedExtensions[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	if c.Listing.DefaultLimit == 0 {
		c.Listing.DefaultLimit = 20
	}
	if c.Listing.MaxLimit == 0 {
		c.Listing.MaxLimit = 100
	}
	if c.Listing.TestCasePageLimit == 0 {
		c.Listing.TestCasePageLimit = 25
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// GetAddr 获取服务器监听地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
