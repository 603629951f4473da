package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/01011010/notesum-hybrid/internal/flagx"
	"github.com/01011010/notesum-hybrid/internal/timex"
)

// fileConfig is a DTO used exclusively for file unmarshalling. Empty fields
// keep the current value.
type fileConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	DatabasePath        string         `json:"database_path" yaml:"database_path"`
	AccessToken         string         `json:"access_token" yaml:"access_token"`
	LogLevel            string         `json:"log_level" yaml:"log_level"`
	LogFile             string         `json:"log_file" yaml:"log_file"`
	Timezone            string         `json:"timezone" yaml:"timezone"`
	LocalSaveDelay      timex.Duration `json:"local_save_delay" yaml:"local_save_delay"`
	CloudSyncDelay      timex.Duration `json:"cloud_sync_delay" yaml:"cloud_sync_delay"`
	MaxSyncDelay        timex.Duration `json:"max_sync_delay" yaml:"max_sync_delay"`
	RecoveryInterval    timex.Duration `json:"recovery_interval" yaml:"recovery_interval"`
}

func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&cfg.ServerEndpointAddr, fc.ServerEndpointAddr)
	setString(&cfg.DatabasePath, fc.DatabasePath)
	setString(&cfg.AccessToken, fc.AccessToken)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFile, fc.LogFile)
	setString(&cfg.Timezone, fc.Timezone)
	setDuration(&cfg.OnlineCheckInterval, fc.OnlineCheckInterval)
	setDuration(&cfg.LocalSaveDelay, fc.LocalSaveDelay)
	setDuration(&cfg.CloudSyncDelay, fc.CloudSyncDelay)
	setDuration(&cfg.MaxSyncDelay, fc.MaxSyncDelay)
	setDuration(&cfg.RecoveryInterval, fc.RecoveryInterval)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}
