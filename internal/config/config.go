package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	DevTools struct {
		URL string `yaml:"url"`
	} `yaml:"devtools"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`

	Cache struct {
		TTLMS int `yaml:"ttlMS"`
	} `yaml:"cache"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.Server.Addr = "127.0.0.1:8654"
	c.DevTools.URL = "http://127.0.0.1:9222"
	c.Sqlite.Dsn = "db.sqlite3"
	c.Sqlite.Prefix = "sniffer_"
	c.Log.Level = "debug"
	c.Log.Writer = []string{"console", "file"}
	c.Log.File = "sniffer.log"
	c.Cache.TTLMS = 5000
	return c
}

// Load 读取 YAML 配置文件，缺失的字段保留默认值；文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return c, nil
}
