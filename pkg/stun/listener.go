// Copyright 2024, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package stun

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"github.com/hmzdot/totem/pkg/base"
	"github.com/q191201771/naza/pkg/nazanet"
	"github.com/thejerf/suture/v4"
)

// listener 一个绑定好的udp socket，同一个socket上的包串行处理
type listener struct {
	uniqueKey     string
	maxPacketSize int

	dispatcher *Dispatcher
	limiter    *SourceLimiter

	udpConn  *net.UDPConn
	conn     *nazanet.UdpConnection
	disposed int32
}

func newListener(addr string, maxPacketSize int, dispatcher *Dispatcher, limiter *SourceLimiter) (*listener, error) {
	uaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	udpConn, err := net.ListenUDP("udp", uaddr)
	if err != nil {
		return nil, err
	}

	// 多读一个字节，用于判断包是否超过了最大长度
	conn, err := nazanet.NewUdpConnection(func(option *nazanet.UdpConnectionOption) {
		option.Conn = udpConn
		option.MaxReadPacketSize = maxPacketSize + 1
	})
	if err != nil {
		_ = udpConn.Close()
		return nil, err
	}

	return &listener{
		uniqueKey:     base.GenUkStunListener(),
		maxPacketSize: maxPacketSize,
		dispatcher:    dispatcher,
		limiter:       limiter,
		udpConn:       udpConn,
		conn:          conn,
	}, nil
}

func (l *listener) localAddr() *net.UDPAddr {
	return l.udpConn.LocalAddr().(*net.UDPAddr)
}

// Serve 实现suture.Service
func (l *listener) Serve(ctx context.Context) error {
	if atomic.LoadInt32(&l.disposed) == 1 {
		return suture.ErrDoNotRestart
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.dispose()
		case <-done:
		}
	}()

	Log.Debugf("[%s] run loop. laddr=%s", l.uniqueKey, l.localAddr())
	err := l.conn.RunLoop(l.onReadUdpPacket)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if atomic.LoadInt32(&l.disposed) == 1 {
		return suture.ErrDoNotRestart
	}
	Log.Errorf("[%s] run loop break. err=%+v", l.uniqueKey, err)
	return err
}

func (l *listener) String() string {
	return l.uniqueKey
}

func (l *listener) dispose() error {
	if !atomic.CompareAndSwapInt32(&l.disposed, 0, 1) {
		return nil
	}
	return l.conn.Dispose()
}

func (l *listener) onReadUdpPacket(b []byte, raddr *net.UDPAddr, err error) bool {
	if err != nil {
		if !errors.Is(err, net.ErrClosed) {
			Log.Errorf("[%s] read udp packet failed. err=%+v", l.uniqueKey, err)
		}
		return false
	}
	l.handlePacket(b, raddr)
	return true
}

// handlePacket 单个包处理过程中的panic不影响后续的包
func (l *listener) handlePacket(b []byte, raddr *net.UDPAddr) {
	defer func() {
		if r := recover(); r != nil {
			metricPackets.WithLabelValues(packetResultPanic).Inc()
			Log.Errorf("[%s] handle packet panic. raddr=%s, len=%d, panic=%+v", l.uniqueKey, raddr, len(b), r)
		}
	}()

	if len(b) > l.maxPacketSize {
		metricPackets.WithLabelValues(packetResultTooLarge).Inc()
		Log.Warnf("[%s] drop packet. raddr=%s, err=%+v", l.uniqueKey, raddr, base.NewErrStunPacketTooLarge(len(b), l.maxPacketSize))
		return
	}
	if l.limiter != nil && !l.limiter.Allow(raddr.IP) {
		metricPackets.WithLabelValues(packetResultRateLimited).Inc()
		return
	}

	resp, ok := l.dispatcher.OnPacket(b, raddr)
	if !ok {
		return
	}
	if err := l.conn.Write2Addr(resp, raddr); err != nil {
		metricPackets.WithLabelValues(packetResultWriteFailed).Inc()
		Log.Errorf("[%s] write response failed. raddr=%s, err=%+v", l.uniqueKey, raddr, err)
	}
}
