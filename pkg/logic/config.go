// Copyright 2019, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hmzdot/totem/pkg/base"
	"github.com/hmzdot/totem/pkg/stun"
	"github.com/q191201771/naza/pkg/nazajson"
	"github.com/q191201771/naza/pkg/nazalog"
)

const (
	defaultMetricsAddr = ":9478"
	defaultPprofAddr   = ":8478"
)

type Config struct {
	ConfVersion   string         `json:"conf_version"`
	StunConfig    StunConfig     `json:"stun"`
	MetricsConfig MetricsConfig  `json:"metrics"`
	PprofConfig   PprofConfig    `json:"pprof"`
	LogConfig     nazalog.Option `json:"log"`
}

type StunConfig struct {
	// AddrList 最多4个，一般是 {主ip,备ip} x {3478,3479}
	AddrList      []string `json:"addr_list"`
	MaxPacketSize int      `json:"max_packet_size"`

	// ReplyBadRequest 属性非法的请求是否回复400，默认丢弃
	ReplyBadRequest bool `json:"reply_bad_request"`

	RateLimitConfig    RateLimitConfig    `json:"rate_limit"`
	SharedSecretConfig SharedSecretConfig `json:"shared_secret"`
}

type RateLimitConfig struct {
	Enable    bool    `json:"enable"`
	AvgPerSec float64 `json:"avg_per_sec"`
	Burst     int     `json:"burst"`
	CacheSize int     `json:"cache_size"`
}

type SharedSecretConfig struct {
	Enable    bool `json:"enable"`
	CacheSize int  `json:"cache_size"`
}

var (
	defaultRateLimitConfig = RateLimitConfig{
		Enable:    false,
		AvgPerSec: 10,
		Burst:     20,
		CacheSize: 10240,
	}

	defaultSharedSecretConfig = SharedSecretConfig{
		Enable:    true,
		CacheSize: 1024,
	}
)

type MetricsConfig struct {
	Enable bool   `json:"enable"`
	Addr   string `json:"addr"`
}

type PprofConfig struct {
	Enable bool   `json:"enable"`
	Addr   string `json:"addr"`
}

// ParseConf 解析json格式的配置内容，没有出现的配置项使用默认值
func ParseConf(rawContent []byte) (*Config, error) {
	// nazajson.Exist只能判断两层的key，更深的配置项在反序列化之前先填好默认值
	var config Config
	config.StunConfig.RateLimitConfig = defaultRateLimitConfig
	config.StunConfig.SharedSecretConfig = defaultSharedSecretConfig
	if err := json.Unmarshal(rawContent, &config); err != nil {
		return nil, err
	}

	j, err := nazajson.New(rawContent)
	if err != nil {
		return nil, err
	}

	mergeStunDefault(j, &config.StunConfig)

	if !j.Exist("metrics.enable") {
		config.MetricsConfig.Enable = true
	}
	if !j.Exist("metrics.addr") {
		config.MetricsConfig.Addr = defaultMetricsAddr
	}
	if !j.Exist("pprof.addr") {
		config.PprofConfig.Addr = defaultPprofAddr
	}

	if !j.Exist("log.level") {
		config.LogConfig.Level = nazalog.LevelDebug
	}
	if !j.Exist("log.filename") {
		config.LogConfig.Filename = "./logs/totemserver.log"
	}
	if !j.Exist("log.is_to_stdout") {
		config.LogConfig.IsToStdout = true
	}
	if !j.Exist("log.is_rotate_daily") {
		config.LogConfig.IsRotateDaily = true
	}
	if !j.Exist("log.short_file_flag") {
		config.LogConfig.ShortFileFlag = true
	}
	if !j.Exist("log.timestamp_flag") {
		config.LogConfig.TimestampFlag = true
	}
	if !j.Exist("log.timestamp_with_ms_flag") {
		config.LogConfig.TimestampWithMsFlag = true
	}
	if !j.Exist("log.level_flag") {
		config.LogConfig.LevelFlag = true
	}
	if !j.Exist("log.assert_behavior") {
		config.LogConfig.AssertBehavior = nazalog.AssertError
	}

	if err := checkStunConfig(&config.StunConfig); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadConfAndInitLog 解析配置并初始化日志，失败时直接退出进程
func LoadConfAndInitLog(rawContent []byte) *Config {
	config, err := ParseConf(rawContent)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "parse conf failed. raw content=%s err=%+v\n", rawContent, err)
		base.OsExitAndWaitPressIfWindows(1)
	}

	if err := nazalog.Init(func(option *nazalog.Option) {
		*option = config.LogConfig
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "initial log failed. err=%+v\n", err)
		base.OsExitAndWaitPressIfWindows(1)
	}
	Log.Info("initial log succ.")

	if config.ConfVersion != base.ConfVersion {
		Log.Warnf("config version invalid. conf version of totemserver=%s, conf version of config file=%s",
			base.ConfVersion, config.ConfVersion)
	}

	Log.Infof("load conf succ. raw content=%s parsed=%+v", rawContent, config)
	return config
}

func mergeStunDefault(j nazajson.Json, c *StunConfig) {
	if !j.Exist("stun.addr_list") {
		c.AddrList = []string{
			fmt.Sprintf(":%d", base.StunDefaultPort),
			fmt.Sprintf(":%d", base.StunAlternatePort),
		}
	}
	if !j.Exist("stun.max_packet_size") {
		c.MaxPacketSize = base.StunMaxPacketSize
	}
}

func checkStunConfig(c *StunConfig) error {
	if len(c.AddrList) == 0 {
		return base.ErrConfAddrListEmpty
	}
	if len(c.AddrList) > stun.MaxServerAddrNum {
		return fmt.Errorf("%w. size=%d, max=%d", base.ErrConfAddrListTooLong, len(c.AddrList), stun.MaxServerAddrNum)
	}
	if c.MaxPacketSize < stun.HeaderSize {
		return fmt.Errorf("%w. max_packet_size=%d", base.ErrConfInvalidValue, c.MaxPacketSize)
	}
	if c.RateLimitConfig.Enable && (c.RateLimitConfig.AvgPerSec <= 0 || c.RateLimitConfig.Burst <= 0 || c.RateLimitConfig.CacheSize <= 0) {
		return fmt.Errorf("%w. rate_limit=%+v", base.ErrConfInvalidValue, c.RateLimitConfig)
	}
	if c.SharedSecretConfig.Enable && c.SharedSecretConfig.CacheSize <= 0 {
		return fmt.Errorf("%w. shared_secret=%+v", base.ErrConfInvalidValue, c.SharedSecretConfig)
	}
	return nil
}
