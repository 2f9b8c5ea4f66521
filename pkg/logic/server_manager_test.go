// Copyright 2024, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic_test

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hmzdot/totem/pkg/logic"
	"github.com/hmzdot/totem/pkg/stun"
	"github.com/q191201771/naza/pkg/assert"
)

var testConfRawContent = []byte(`{
  "conf_version": "v0.1.0",
  "stun": {
    "addr_list": ["127.0.0.1:0", "127.0.0.1:0"]
  },
  "metrics": {
    "enable": true,
    "addr": "127.0.0.1:0"
  },
  "log": {
    "level": 3,
    "filename": "",
    "is_to_stdout": true
  }
}`)

func TestServerManager(t *testing.T) {
	sm := logic.NewServerManager(func(option *logic.Option) {
		option.ConfRawContent = testConfRawContent
	})
	assert.Equal(t, 2, len(sm.Config().StunConfig.AddrList))
	assert.Equal(t, true, strings.HasPrefix(sm.StartTime(), time.Now().Format("2006-")))

	done := make(chan error, 1)
	go func() {
		done <- sm.RunLoop()
	}()

	// 等待监听完成
	for i := 0; i < 100; i++ {
		if len(sm.StunLocalAddrList()) == 2 && sm.MetricsAddr() != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	addrList := sm.StunLocalAddrList()
	assert.Equal(t, 2, len(addrList))

	for _, addr := range addrList {
		c := stun.NewClient(func(option *stun.ClientOption) {
			option.ServerAddrList = []string{addr.String()}
			option.TimeoutMs = 500
		})
		res, err := c.Query(0)
		assert.Equal(t, nil, err)
		assert.Equal(t, "127.0.0.1", res.MappedAddress.Ip.String())
	}

	metricsAddr := sm.MetricsAddr()
	assert.IsNotNil(t, metricsAddr)
	resp, err := http.Get("http://" + metricsAddr.String() + "/metrics")
	assert.Equal(t, nil, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, strings.Contains(string(body), `totem_stun_packets_total{result="handled"}`))
	assert.Equal(t, true, strings.Contains(string(body), `totem_stun_responses_total{type="BindingResponse"}`))

	sm.Dispose()
	select {
	case err := <-done:
		assert.Equal(t, nil, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server manager run loop not exit")
	}
	sm.Dispose()
}

func TestNewTotemServer(t *testing.T) {
	s := logic.NewTotemServer(func(option *logic.Option) {
		option.ConfRawContent = []byte(`{"stun": {"addr_list": ["127.0.0.1:0"]}, "metrics": {"enable": false}, "log": {"filename": ""}}`)
	})
	assert.Equal(t, 0, len(s.StunLocalAddrList()))

	// 运行前调用Dispose，RunLoop直接返回
	s.Dispose()
	assert.Equal(t, nil, s.RunLoop())
}

func TestServerManagerListenFailed(t *testing.T) {
	// 地址已经被占用时，RunLoop 返回错误，由调用方决定以非0状态码退出进程
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	assert.Equal(t, nil, err)
	defer conn.Close()

	raw := fmt.Sprintf(`{"stun": {"addr_list": ["%s"]}, "metrics": {"enable": false}, "log": {"filename": ""}}`, conn.LocalAddr().String())
	sm := logic.NewServerManager(func(option *logic.Option) {
		option.ConfRawContent = []byte(raw)
	})

	done := make(chan error, 1)
	go func() {
		done <- sm.RunLoop()
	}()
	select {
	case err := <-done:
		assert.IsNotNil(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server manager run loop not exit")
	}
	assert.Equal(t, 0, len(sm.StunLocalAddrList()))
	sm.Dispose()
}
