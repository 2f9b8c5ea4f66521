// Copyright 2024, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// httpService 一个http监听，挂在 ServerManager 的监管树下
type httpService struct {
	name    string
	addr    string
	handler http.Handler

	mutex sync.Mutex
	ln    net.Listener
}

func newHttpService(name string, addr string, handler http.Handler) *httpService {
	return &httpService{
		name:    name,
		addr:    addr,
		handler: handler,
	}
}

// newMetricsService prometheus的 /metrics
func newMetricsService(addr string) *httpService {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return newHttpService("metrics", addr, mux)
}

// newPprofService 使用 http.DefaultServeMux ，其中注册了 net/http/pprof 的 /debug/pprof/
func newPprofService(addr string) *httpService {
	return newHttpService("pprof", addr, http.DefaultServeMux)
}

// Listen 提前绑定端口，使端口冲突之类的错误在启动阶段就暴露出来
func (h *httpService) Listen() error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}
	h.mutex.Lock()
	h.ln = ln
	h.mutex.Unlock()
	Log.Infof("start %s listen. addr=%s", h.name, ln.Addr())
	return nil
}

// Addr 需在 Listen 之后调用
func (h *httpService) Addr() net.Addr {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.ln == nil {
		return nil
	}
	return h.ln.Addr()
}

// Serve 实现suture.Service
func (h *httpService) Serve(ctx context.Context) error {
	h.mutex.Lock()
	ln := h.ln
	h.mutex.Unlock()
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", h.addr); err != nil {
			return err
		}
		h.mutex.Lock()
		h.ln = ln
		h.mutex.Unlock()
	}

	srv := &http.Server{
		Handler:           h.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	var err error
	select {
	case <-ctx.Done():
		_ = srv.Close()
		<-errChan
		err = ctx.Err()
	case err = <-errChan:
		Log.Errorf("%s serve failed. addr=%s, err=%+v", h.name, h.addr, err)
	}

	// srv.Serve返回后ln已经被关闭，重启时需要重新监听
	h.mutex.Lock()
	h.ln = nil
	h.mutex.Unlock()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (h *httpService) String() string {
	return h.name + "@" + h.addr
}
