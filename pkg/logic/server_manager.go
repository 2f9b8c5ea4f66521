// Copyright 2019, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"context"
	"fmt"
	"net"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"sync"

	"github.com/hmzdot/totem/pkg/base"
	"github.com/hmzdot/totem/pkg/stun"
	"github.com/thejerf/suture/v4"
)

type ServerManager struct {
	option          Option
	serverStartTime string
	config          *Config

	stunServer     *stun.Server
	metricsService *httpService
	pprofService   *httpService

	mutex    sync.Mutex
	cancel   context.CancelFunc
	disposed bool
}

func NewServerManager(modOption ...ModOption) *ServerManager {
	sm := &ServerManager{
		serverStartTime: base.ReadableNowTime(),
	}

	sm.option = defaultOption
	for _, fn := range modOption {
		fn(&sm.option)
	}

	rawContent := sm.option.ConfRawContent
	if len(rawContent) == 0 {
		rawContent = base.WrapReadConfigFile(sm.option.ConfFilename, DefaultConfFilenameList, func() {
			_, _ = fmt.Fprintf(os.Stderr, `
Example:
  %s -c %s

Github: %s
`, os.Args[0], filepath.FromSlash("./conf/totemserver.conf.json"), base.TotemGithubSite)
		})
	}
	sm.config = LoadConfAndInitLog(rawContent)
	base.LogoutStartInfo()

	sc := sm.config.StunConfig
	sm.stunServer = stun.NewServer(func(option *stun.ServerOption) {
		option.AddrList = sc.AddrList
		option.MaxPacketSize = sc.MaxPacketSize
		option.RateLimitEnable = sc.RateLimitConfig.Enable
		option.RateLimitAvgPerSec = sc.RateLimitConfig.AvgPerSec
		option.RateLimitBurst = sc.RateLimitConfig.Burst
		option.RateLimitCacheSize = sc.RateLimitConfig.CacheSize
		option.SharedSecretEnable = sc.SharedSecretConfig.Enable
		option.SharedSecretCacheSize = sc.SharedSecretConfig.CacheSize
		option.BadRequestReplyEnable = sc.ReplyBadRequest
	})

	if sm.config.MetricsConfig.Enable {
		sm.metricsService = newMetricsService(sm.config.MetricsConfig.Addr)
	}
	if sm.config.PprofConfig.Enable {
		sm.pprofService = newPprofService(sm.config.PprofConfig.Addr)
	}

	return sm
}

// ----- implement ITotemServer interface ------------------------------------------------------------------------------

// RunLoop 阻塞直到 Dispose 被调用，或者启动阶段监听失败
func (sm *ServerManager) RunLoop() error {
	sm.mutex.Lock()
	disposed := sm.disposed
	sm.mutex.Unlock()
	if disposed {
		return nil
	}

	go base.RunSignalHandler(func() {
		sm.Dispose()
	})

	if err := sm.stunServer.Listen(); err != nil {
		Log.Errorf("stun server listen failed. err=%+v", err)
		return err
	}
	for _, h := range []*httpService{sm.metricsService, sm.pprofService} {
		if h == nil {
			continue
		}
		if err := h.Listen(); err != nil {
			Log.Errorf("%s listen failed. addr=%s, err=%+v", h.name, h.addr, err)
			_ = sm.stunServer.Dispose()
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sm.mutex.Lock()
	if sm.disposed {
		sm.mutex.Unlock()
		cancel()
		return nil
	}
	sm.cancel = cancel
	sm.mutex.Unlock()

	sup := suture.New("totemserver", suture.Spec{
		EventHook: func(e suture.Event) {
			Log.Warnf("supervisor event. %s", e)
		},
	})
	sup.Add(sm.stunServer)
	if sm.metricsService != nil {
		sup.Add(sm.metricsService)
	}
	if sm.pprofService != nil {
		sup.Add(sm.pprofService)
	}

	Log.Infof("server manager start. start time=%s, stun=%v", sm.serverStartTime, sm.stunServer.LocalAddrList())
	err := sup.Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (sm *ServerManager) Dispose() {
	sm.mutex.Lock()
	if sm.disposed {
		sm.mutex.Unlock()
		return
	}
	sm.disposed = true
	cancel := sm.cancel
	sm.mutex.Unlock()

	Log.Debug("dispose server manager.")
	if cancel != nil {
		cancel()
	}
	if err := sm.stunServer.Dispose(); err != nil {
		Log.Warnf("dispose stun server failed. err=%+v", err)
	}
}

func (sm *ServerManager) StunLocalAddrList() []*net.UDPAddr {
	return sm.stunServer.LocalAddrList()
}

// ---------------------------------------------------------------------------------------------------------------------

// StartTime 进程启动时间，格式见 base.ReadableNowTime
func (sm *ServerManager) StartTime() string {
	return sm.serverStartTime
}

func (sm *ServerManager) Config() *Config {
	return sm.config
}

func (sm *ServerManager) StunServer() *stun.Server {
	return sm.stunServer
}

// MetricsAddr 未开启metrics或者还没有监听时返回nil
func (sm *ServerManager) MetricsAddr() net.Addr {
	if sm.metricsService == nil {
		return nil
	}
	return sm.metricsService.Addr()
}
