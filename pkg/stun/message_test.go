// Copyright 2024, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package stun_test

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/hmzdot/totem/pkg/base"
	"github.com/hmzdot/totem/pkg/stun"
	"github.com/q191201771/naza/pkg/assert"
)

var goldenTid = stun.TransactionId{
	0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
}

func TestHeaderWire(t *testing.T) {
	m := stun.NewMessage(stun.NewHeader(stun.MessageTypeBindingRequest, goldenTid))
	b, err := m.Pack()
	assert.Equal(t, nil, err)
	assert.Equal(t, stun.HeaderSize, len(b))
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x00}, b[:4])
	assert.Equal(t, goldenTid[:], b[4:])

	h, length, err := stun.UnpackHeader(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, length)
	assert.Equal(t, stun.MessageTypeBindingRequest, h.Type)
	assert.Equal(t, goldenTid, h.TransactionId)
	assert.Equal(t, "000102030405060708090a0b0c0d0e0f", h.TransactionId.String())
}

func TestUnpackHeaderInvalid(t *testing.T) {
	_, _, err := stun.UnpackHeader(make([]byte, 19))
	assert.Equal(t, true, errors.Is(err, base.ErrStunShortBuffer))

	b := make([]byte, 20)
	b[1] = 0x03
	_, _, err = stun.UnpackHeader(b)
	assert.Equal(t, true, errors.Is(err, base.ErrStunInvalidMessageType))
}

func TestNewHeaderWithRandomId(t *testing.T) {
	h, err := stun.NewHeaderWithRandomId(stun.MessageTypeBindingRequest, bytes.NewReader(goldenTid[:]))
	assert.Equal(t, nil, err)
	assert.Equal(t, goldenTid, h.TransactionId)

	// 随机源不够16字节
	_, err = stun.NewHeaderWithRandomId(stun.MessageTypeBindingRequest, bytes.NewReader([]byte{1, 2, 3}))
	assert.IsNotNil(t, err)

	h1, err := stun.NewHeaderWithRandomId(stun.MessageTypeBindingRequest, nil)
	assert.Equal(t, nil, err)
	h2, err := stun.NewHeaderWithRandomId(stun.MessageTypeBindingRequest, nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, h1.TransactionId == h2.TransactionId)
}

func TestMessageRoundTrip(t *testing.T) {
	m := stun.NewMessage(stun.NewHeader(stun.MessageTypeBindingResponse, goldenTid),
		stun.NewMappedAddress(net.ParseIP("1.2.3.4"), 5678),
		stun.NewSourceAddress(net.ParseIP("10.0.0.1"), 3478),
		stun.NewChangedAddress(net.ParseIP("10.0.0.2"), 3479),
		stun.Username("chef"),
		stun.NewErrorCode(600, "global failure"),
	)
	b, err := m.Pack()
	assert.Equal(t, nil, err)
	// 12+12+12+(4+4)+(4+4+14)
	assert.Equal(t, stun.HeaderSize+66, len(b))

	_, length, err := stun.UnpackHeader(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, len(b)-stun.HeaderSize, length)

	decoded, err := stun.UnpackMessage(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, m, decoded)

	ma, ok := decoded.MappedAddress()
	assert.Equal(t, true, ok)
	assert.Equal(t, "1.2.3.4:5678", ma.String())
	ec, ok := decoded.ErrorCode()
	assert.Equal(t, true, ok)
	assert.Equal(t, 600, ec.Code)
	_, ok = decoded.ChangeRequest()
	assert.Equal(t, false, ok)

	a, ok := decoded.FindAttribute(stun.AttrTypeUsername)
	assert.Equal(t, true, ok)
	assert.Equal(t, stun.Username("chef"), a)
	_, ok = decoded.FindAttribute(stun.AttrTypePassword)
	assert.Equal(t, false, ok)
}

func TestFindAttributeFirstMatch(t *testing.T) {
	m := stun.NewMessage(stun.NewHeader(stun.MessageTypeBindingResponse, goldenTid),
		stun.NewSourceAddress(net.ParseIP("10.0.0.1"), 3478),
		stun.NewMappedAddress(net.ParseIP("1.1.1.1"), 1),
		stun.NewMappedAddress(net.ParseIP("2.2.2.2"), 2),
	)
	ma, ok := m.MappedAddress()
	assert.Equal(t, true, ok)
	assert.Equal(t, "1.1.1.1:1", ma.String())
}

func TestUnpackMessageLengthMismatch(t *testing.T) {
	m := stun.NewMessage(stun.NewHeader(stun.MessageTypeBindingRequest, goldenTid),
		stun.ChangeRequest{ChangeIp: true})
	b, err := m.Pack()
	assert.Equal(t, nil, err)

	// 尾部多出数据
	_, err = stun.UnpackMessage(append(append([]byte{}, b...), 0, 0, 0, 0))
	assert.Equal(t, true, errors.Is(err, base.ErrStunLengthMismatch))

	// 数据被截断
	_, err = stun.UnpackMessage(b[:len(b)-1])
	assert.Equal(t, true, errors.Is(err, base.ErrStunLengthMismatch))

	// 声明长度和包长度一致，但是属性越过了声明的边界
	c := append([]byte{}, b...)
	c[3] = 4
	c = c[:stun.HeaderSize+4]
	c[stun.HeaderSize+3] = 8
	_, err = stun.UnpackMessage(c)
	assert.Equal(t, true, errors.Is(err, base.ErrStunLengthMismatch))
}

func TestUnpackMessageAttrError(t *testing.T) {
	// 地址族为ipv6
	b := []byte{
		0x00, 0x01, 0x00, 0x0C,
	}
	b = append(b, goldenTid[:]...)
	b = append(b, 0x00, 0x01, 0x00, 0x08, 0x00, 0x02, 0x00, 0x50, 1, 2, 3, 4)
	_, err := stun.UnpackMessage(b)
	assert.Equal(t, true, errors.Is(err, base.ErrStunUnsupportedFamily))
}

func TestUnpackMessageUnknownAttributes(t *testing.T) {
	b := []byte{
		0x00, 0x01, 0x00, 0x18,
	}
	b = append(b, goldenTid[:]...)
	// 可选的未知属性，跳过
	b = append(b, 0x80, 0x22, 0x00, 0x04, 'a', 'b', 'c', 'd')
	// 必须理解的未知属性
	b = append(b, 0x00, 0x20, 0x00, 0x00)
	b = append(b, 0x00, 0x03, 0x00, 0x04, 0, 0, 0, 0x02)
	b = append(b, 0x00, 0x31, 0x00, 0x00)

	m, err := stun.UnpackMessage(b)
	var unknownErr *stun.UnknownAttributesError
	assert.Equal(t, true, errors.As(err, &unknownErr))
	assert.Equal(t, true, errors.Is(err, base.ErrStunUnknownAttr))
	assert.Equal(t, []uint16{0x0020, 0x0031}, unknownErr.Types)

	// 头部和已知属性依然可用
	assert.Equal(t, stun.MessageTypeBindingRequest, m.Header.Type)
	assert.Equal(t, goldenTid, m.Header.TransactionId)
	assert.Equal(t, []stun.Attribute{stun.ChangeRequest{ChangePort: true}}, m.Attributes)
}

func TestUnpackMessageOptionalUnknownOnly(t *testing.T) {
	b := []byte{
		0x00, 0x01, 0x00, 0x08,
	}
	b = append(b, goldenTid[:]...)
	b = append(b, 0x80, 0x22, 0x00, 0x04, 'a', 'b', 'c', 'd')

	m, err := stun.UnpackMessage(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(m.Attributes))
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "BindingRequest", stun.MessageTypeBindingRequest.String())
	assert.Equal(t, "SharedSecretErrorResponse", stun.MessageTypeSharedSecretErrorResponse.String())
	assert.Equal(t, "MessageType(0x0003)", stun.MessageType(3).String())
	assert.Equal(t, true, stun.MessageTypeSharedSecretRequest.IsRequest())
	assert.Equal(t, false, stun.MessageTypeBindingResponse.IsRequest())
}

func BenchmarkUnpackMessage(b *testing.B) {
	m := stun.NewMessage(stun.NewHeader(stun.MessageTypeBindingResponse, goldenTid),
		stun.NewMappedAddress(net.ParseIP("1.2.3.4"), 5678))
	buf, err := m.Pack()
	assert.Equal(b, nil, err)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = stun.UnpackMessage(buf)
	}
}
