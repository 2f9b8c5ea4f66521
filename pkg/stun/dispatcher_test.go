// Copyright 2024, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package stun_test

import (
	"net"
	"strings"
	"testing"

	"github.com/hmzdot/totem/pkg/stun"
	"github.com/q191201771/naza/pkg/assert"
)

func packRequest(t *testing.T, typ stun.MessageType, attrs ...stun.Attribute) []byte {
	m := stun.NewMessage(stun.NewHeader(typ, goldenTid), attrs...)
	b, err := m.Pack()
	assert.Equal(t, nil, err)
	return b
}

func dispatch(t *testing.T, d *stun.Dispatcher, b []byte, raddr *net.UDPAddr) (stun.Message, bool) {
	resp, ok := d.OnPacket(b, raddr)
	if !ok {
		assert.Equal(t, 0, len(resp))
		return stun.Message{}, false
	}
	m, err := stun.UnpackMessage(resp)
	assert.Equal(t, nil, err)
	return m, true
}

func TestDispatcherBinding(t *testing.T) {
	d, err := stun.NewDispatcher()
	assert.Equal(t, nil, err)

	raddr := &net.UDPAddr{IP: net.ParseIP("203.0.113.7"), Port: 54321}
	m, ok := dispatch(t, d, packRequest(t, stun.MessageTypeBindingRequest), raddr)
	assert.Equal(t, true, ok)
	assert.Equal(t, stun.MessageTypeBindingResponse, m.Header.Type)
	assert.Equal(t, goldenTid, m.Header.TransactionId)
	assert.Equal(t, 1, len(m.Attributes))
	ma, ok := m.MappedAddress()
	assert.Equal(t, true, ok)
	assert.Equal(t, "203.0.113.7:54321", ma.String())

	// 携带change request时依然从原地址回复
	m, ok = dispatch(t, d, packRequest(t, stun.MessageTypeBindingRequest,
		stun.ChangeRequest{ChangeIp: true, ChangePort: true}), raddr)
	assert.Equal(t, true, ok)
	assert.Equal(t, stun.MessageTypeBindingResponse, m.Header.Type)
	ma, _ = m.MappedAddress()
	assert.Equal(t, "203.0.113.7:54321", ma.String())
}

func TestDispatcherBindingNonIpv4(t *testing.T) {
	d, err := stun.NewDispatcher()
	assert.Equal(t, nil, err)

	raddr := &net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 3478}
	m, ok := dispatch(t, d, packRequest(t, stun.MessageTypeBindingRequest), raddr)
	assert.Equal(t, true, ok)
	assert.Equal(t, stun.MessageTypeBindingErrorResponse, m.Header.Type)
	assert.Equal(t, goldenTid, m.Header.TransactionId)
	ec, ok := m.ErrorCode()
	assert.Equal(t, true, ok)
	assert.Equal(t, stun.ErrorCodeBadRequest, ec.Code)
	assert.Equal(t, stun.ReasonIpv4Only, ec.Reason)
	_, ok = m.MappedAddress()
	assert.Equal(t, false, ok)
}

func TestDispatcherSharedSecret(t *testing.T) {
	d, err := stun.NewDispatcher(func(option *stun.ServerOption) {
		option.SharedSecretCacheSize = 2
	})
	assert.Equal(t, nil, err)

	raddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 10000}
	var usernames []string
	for i := 0; i < 3; i++ {
		m, ok := dispatch(t, d, packRequest(t, stun.MessageTypeSharedSecretRequest), raddr)
		assert.Equal(t, true, ok)
		assert.Equal(t, stun.MessageTypeSharedSecretResponse, m.Header.Type)
		assert.Equal(t, 2, len(m.Attributes))

		u, ok := m.FindAttribute(stun.AttrTypeUsername)
		assert.Equal(t, true, ok)
		p, ok := m.FindAttribute(stun.AttrTypePassword)
		assert.Equal(t, true, ok)

		password, ok := d.Credentials().Lookup(string(u.(stun.Username)))
		assert.Equal(t, true, ok)
		assert.Equal(t, string(p.(stun.Password)), password)
		usernames = append(usernames, string(u.(stun.Username)))
	}
	assert.Equal(t, 2, d.Credentials().Len())
	// 最早签发的被淘汰
	_, ok := d.Credentials().Lookup(usernames[0])
	assert.Equal(t, false, ok)
}

func TestDispatcherSharedSecretDisabled(t *testing.T) {
	d, err := stun.NewDispatcher(func(option *stun.ServerOption) {
		option.SharedSecretEnable = false
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, true, d.Credentials() == nil)

	m, ok := dispatch(t, d, packRequest(t, stun.MessageTypeSharedSecretRequest), &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1})
	assert.Equal(t, true, ok)
	assert.Equal(t, stun.MessageTypeSharedSecretErrorResponse, m.Header.Type)
	ec, _ := m.ErrorCode()
	assert.Equal(t, stun.ErrorCodeUseTls, ec.Code)
	assert.Equal(t, stun.ReasonUseTls, ec.Reason)
}

func TestDispatcherUnknownAttributes(t *testing.T) {
	d, err := stun.NewDispatcher()
	assert.Equal(t, nil, err)

	b := []byte{0x00, 0x01, 0x00, 0x08}
	b = append(b, goldenTid[:]...)
	b = append(b, 0x00, 0x42, 0x00, 0x00, 0xC0, 0x01, 0x00, 0x00)

	m, ok := dispatch(t, d, b, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1})
	assert.Equal(t, true, ok)
	assert.Equal(t, stun.MessageTypeBindingErrorResponse, m.Header.Type)
	assert.Equal(t, goldenTid, m.Header.TransactionId)
	ec, _ := m.ErrorCode()
	assert.Equal(t, stun.ErrorCodeUnknownAttribute, ec.Code)
	ua, ok := m.FindAttribute(stun.AttrTypeUnknownAttributes)
	assert.Equal(t, true, ok)
	assert.Equal(t, stun.UnknownAttributes{0x0042}, ua)
}

func TestDispatcherBadRequest(t *testing.T) {
	d, err := stun.NewDispatcher(func(option *stun.ServerOption) {
		option.BadRequestReplyEnable = true
	})
	assert.Equal(t, nil, err)
	raddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}

	// 头部合法但是属性非法的请求，回复400
	b := []byte{0x00, 0x02, 0x00, 0x06}
	b = append(b, goldenTid[:]...)
	b = append(b, 0x00, 0x06, 0x00, 0x02, 0xC3, 0x28)
	m, ok := dispatch(t, d, b, raddr)
	assert.Equal(t, true, ok)
	assert.Equal(t, stun.MessageTypeSharedSecretErrorResponse, m.Header.Type)
	ec, _ := m.ErrorCode()
	assert.Equal(t, stun.ErrorCodeBadRequest, ec.Code)
	assert.Equal(t, stun.ReasonBadRequest, ec.Reason)

	// 长度不匹配
	b = packRequest(t, stun.MessageTypeBindingRequest)
	b = append(b, 0xFF)
	m, ok = dispatch(t, d, b, raddr)
	assert.Equal(t, true, ok)
	assert.Equal(t, stun.MessageTypeBindingErrorResponse, m.Header.Type)
}

func TestDispatcherBadRequestDrop(t *testing.T) {
	d, err := stun.NewDispatcher()
	assert.Equal(t, nil, err)
	raddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}

	// 默认不回复400，只丢弃
	b := []byte{0x00, 0x02, 0x00, 0x06}
	b = append(b, goldenTid[:]...)
	b = append(b, 0x00, 0x06, 0x00, 0x02, 0xC3, 0x28)
	_, ok := dispatch(t, d, b, raddr)
	assert.Equal(t, false, ok)

	b = packRequest(t, stun.MessageTypeBindingRequest)
	b = append(b, 0xFF)
	_, ok = dispatch(t, d, b, raddr)
	assert.Equal(t, false, ok)

	// unknown attribute依然回复420
	b = []byte{0x00, 0x01, 0x00, 0x04}
	b = append(b, goldenTid[:]...)
	b = append(b, 0x00, 0x42, 0x00, 0x00)
	m, ok := dispatch(t, d, b, raddr)
	assert.Equal(t, true, ok)
	ec, _ := m.ErrorCode()
	assert.Equal(t, stun.ErrorCodeUnknownAttribute, ec.Code)

	// 之后正常请求不受影响
	m, ok = dispatch(t, d, packRequest(t, stun.MessageTypeBindingRequest), raddr)
	assert.Equal(t, true, ok)
	assert.Equal(t, stun.MessageTypeBindingResponse, m.Header.Type)
}

func TestDispatcherDrop(t *testing.T) {
	d, err := stun.NewDispatcher()
	assert.Equal(t, nil, err)
	raddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}

	// 不足20字节
	_, ok := d.OnPacket([]byte{0x00, 0x01, 0x00}, raddr)
	assert.Equal(t, false, ok)

	// 未知的消息类型
	b := packRequest(t, stun.MessageTypeBindingRequest)
	b[1] = 0x09
	_, ok = d.OnPacket(b, raddr)
	assert.Equal(t, false, ok)

	// 不回复response类型
	for _, typ := range []stun.MessageType{
		stun.MessageTypeBindingResponse,
		stun.MessageTypeBindingErrorResponse,
		stun.MessageTypeSharedSecretResponse,
		stun.MessageTypeSharedSecretErrorResponse,
	} {
		_, ok = d.OnPacket(packRequest(t, typ), raddr)
		assert.Equal(t, false, ok)
	}

	// 非法的response也不回复
	b = packRequest(t, stun.MessageTypeBindingResponse)
	b = append(b, 0x00)
	_, ok = d.OnPacket(b, raddr)
	assert.Equal(t, false, ok)
}

func TestCredentialStore(t *testing.T) {
	_, err := stun.NewCredentialStore(0, nil)
	assert.IsNotNil(t, err)

	s, err := stun.NewCredentialStore(16, nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, s.Len())

	u1, p1, err := s.Issue()
	assert.Equal(t, nil, err)
	u2, p2, err := s.Issue()
	assert.Equal(t, nil, err)
	assert.Equal(t, false, u1 == u2)
	assert.Equal(t, false, p1 == p2)
	assert.Equal(t, 32, len(p1))
	assert.Equal(t, true, strings.HasPrefix(u1, "totem"))
	assert.Equal(t, 2, s.Len())

	p, ok := s.Lookup(u2)
	assert.Equal(t, true, ok)
	assert.Equal(t, p2, p)
	_, ok = s.Lookup("nobody")
	assert.Equal(t, false, ok)

	// 随机源耗尽
	s, err = stun.NewCredentialStore(16, strings.NewReader("abc"))
	assert.Equal(t, nil, err)
	_, _, err = s.Issue()
	assert.IsNotNil(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestSourceLimiter(t *testing.T) {
	l, err := stun.NewSourceLimiter(0.001, 2, 2)
	assert.Equal(t, nil, err)

	a := net.ParseIP("10.0.0.1")
	b := net.ParseIP("10.0.0.2")
	c := net.ParseIP("10.0.0.3")

	assert.Equal(t, true, l.Allow(a))
	assert.Equal(t, true, l.Allow(a))
	assert.Equal(t, false, l.Allow(a))

	// 不同来源互不影响
	assert.Equal(t, true, l.Allow(b))

	// c进入后a被淘汰，a重新获得完整的突发额度
	assert.Equal(t, true, l.Allow(c))
	assert.Equal(t, true, l.Allow(a))

	_, err = stun.NewSourceLimiter(1, 1, 0)
	assert.IsNotNil(t, err)
}
