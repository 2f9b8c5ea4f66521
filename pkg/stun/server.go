// Copyright 2020, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package stun

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/hmzdot/totem/pkg/base"
	"github.com/thejerf/suture/v4"
)

// MaxServerAddrNum 主ip、备ip和主端口、备端口的四种组合
const MaxServerAddrNum = 4

type ServerOption struct {
	// AddrList 监听地址，最多 MaxServerAddrNum 个
	AddrList []string

	// MaxPacketSize 超过该长度的包直接丢弃
	MaxPacketSize int

	RateLimitEnable    bool
	RateLimitAvgPerSec float64
	RateLimitBurst     int
	RateLimitCacheSize int

	// SharedSecretEnable 为false时，shared secret request回复433
	SharedSecretEnable    bool
	SharedSecretCacheSize int

	// BadRequestReplyEnable 为true时，属性非法的请求回复400，否则只打日志并丢弃
	BadRequestReplyEnable bool

	// Rand 签发用户名和密码的随机源，为nil时使用crypto/rand
	Rand io.Reader
}

var defaultServerOption = ServerOption{
	MaxPacketSize:         base.StunMaxPacketSize,
	RateLimitEnable:       false,
	RateLimitAvgPerSec:    10,
	RateLimitBurst:        20,
	RateLimitCacheSize:    10240,
	SharedSecretEnable:    true,
	SharedSecretCacheSize: 1024,
	BadRequestReplyEnable: false,
}

type ModServerOption func(option *ServerOption)

// Server 每个监听地址一个 listener ，每个 listener 一个goroutine阻塞读包，
// 所有 listener 挂在同一棵suture监管树下，单个 listener 异常退出后会被重新拉起。
type Server struct {
	uniqueKey string
	option    ServerOption

	dispatcher *Dispatcher
	limiter    *SourceLimiter

	mutex     sync.Mutex
	listeners []*listener
	cancel    context.CancelFunc
	disposed  bool
}

func NewServer(modOptions ...ModServerOption) *Server {
	option := defaultServerOption
	for _, fn := range modOptions {
		fn(&option)
	}
	uk := base.GenUkStunServer()
	return &Server{
		uniqueKey: uk,
		option:    option,
	}
}

func (s *Server) UniqueKey() string {
	return s.uniqueKey
}

// Listen 绑定所有监听地址。任意一个失败则关闭已经绑定的并返回错误
func (s *Server) Listen() error {
	s.mutex.Lock()
	disposed := s.disposed
	s.mutex.Unlock()
	if disposed {
		return base.ErrStunServerDisposed
	}

	if len(s.option.AddrList) == 0 {
		return base.ErrConfAddrListEmpty
	}
	if len(s.option.AddrList) > MaxServerAddrNum {
		return base.ErrConfAddrListTooLong
	}

	dispatcher, err := newDispatcher(s.uniqueKey, s.option)
	if err != nil {
		return err
	}
	var limiter *SourceLimiter
	if s.option.RateLimitEnable {
		limiter, err = NewSourceLimiter(s.option.RateLimitAvgPerSec, s.option.RateLimitBurst, s.option.RateLimitCacheSize)
		if err != nil {
			return err
		}
	}

	var listeners []*listener
	for _, addr := range s.option.AddrList {
		l, err := newListener(addr, s.option.MaxPacketSize, dispatcher, limiter)
		if err != nil {
			Log.Errorf("[%s] listen failed. addr=%s, err=%+v", s.uniqueKey, addr, err)
			for _, item := range listeners {
				_ = item.dispose()
			}
			return err
		}
		Log.Infof("[%s] start udp listen. addr=%s, laddr=%s, listener=%s", s.uniqueKey, addr, l.localAddr(), l.uniqueKey)
		listeners = append(listeners, l)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.disposed {
		for _, item := range listeners {
			_ = item.dispose()
		}
		return base.ErrStunServerDisposed
	}
	s.dispatcher = dispatcher
	s.limiter = limiter
	s.listeners = listeners
	return nil
}

// LocalAddrList 实际绑定的地址，顺序和 ServerOption.AddrList 一致。需在 Listen 之后调用
func (s *Server) LocalAddrList() []*net.UDPAddr {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]*net.UDPAddr, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l.localAddr())
	}
	return out
}

// Dispatcher 需在 Listen 之后调用
func (s *Server) Dispatcher() *Dispatcher {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.dispatcher
}

// Serve 实现suture.Service。阻塞直到<ctx>被取消
//
// 已经 Dispose 的server返回 suture.ErrDoNotRestart ，外层的监管树不会再拉起它
func (s *Server) Serve(ctx context.Context) error {
	s.mutex.Lock()
	if s.disposed {
		s.mutex.Unlock()
		return suture.ErrDoNotRestart
	}
	if len(s.listeners) == 0 {
		s.mutex.Unlock()
		return base.ErrStunServerNotListened
	}
	listeners := s.listeners
	s.mutex.Unlock()

	sup := suture.New(s.uniqueKey, suture.Spec{
		EventHook: func(e suture.Event) {
			Log.Warnf("[%s] supervisor event. %s", s.uniqueKey, e)
		},
	})
	for _, l := range listeners {
		sup.Add(l)
	}
	err := sup.Serve(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// RunLoop 阻塞直到 Dispose 被调用
func (s *Server) RunLoop() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.mutex.Lock()
	if s.disposed {
		s.mutex.Unlock()
		cancel()
		return base.ErrStunServerDisposed
	}
	s.cancel = cancel
	s.mutex.Unlock()

	err := s.Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) Dispose() error {
	s.mutex.Lock()
	if s.disposed {
		s.mutex.Unlock()
		return nil
	}
	s.disposed = true
	cancel := s.cancel
	listeners := s.listeners
	s.mutex.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	for _, l := range listeners {
		if e := l.dispose(); e != nil && err == nil {
			err = e
		}
	}
	Log.Infof("[%s] lifecycle dispose stun server.", s.uniqueKey)
	return err
}
