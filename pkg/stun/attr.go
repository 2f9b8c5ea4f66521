// Copyright 2020, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package stun

import (
	"fmt"
	"net"
	"strconv"
	"unicode/utf8"

	"github.com/hmzdot/totem/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

// Attribute 属性值。
// 这是一个封闭的集合，只有本包内的 MappedAddress ... ReflectedFrom 这11个类型实现了该接口，
// 使用方通过type switch区分具体类型。
type Attribute interface {
	Type() AttrType

	// Pack 序列化属性值部分，不包含type和length这4个字节
	Pack() ([]byte, error)

	isAttribute()
}

// PackAttribute 序列化完整的属性，包含type和length
func PackAttribute(a Attribute) ([]byte, error) {
	v, err := a.Pack()
	if err != nil {
		return nil, err
	}
	if len(v) > maxAttrSectionLength-attrHeaderSize {
		return nil, fmt.Errorf("%w. type=%s, length=%d", base.ErrStunAttrValueTooLarge, a.Type(), len(v))
	}
	out := make([]byte, attrHeaderSize+len(v))
	bele.BePutUint16(out, uint16(a.Type()))
	bele.BePutUint16(out[2:], uint16(len(v)))
	copy(out[attrHeaderSize:], v)
	return out, nil
}

// UnpackAttribute 从<b>的起始位置解析一个属性
//
// @return consumed 消耗的字节数，即4+length。当err为 base.ErrStunUnknownAttr 时consumed依然有效，调用方可以据此跳过该属性
func UnpackAttribute(b []byte) (attr Attribute, consumed int, err error) {
	if len(b) < attrHeaderSize {
		return nil, 0, base.NewErrStunShortBuffer(attrHeaderSize, len(b), "unpack attribute header")
	}
	t := AttrType(bele.BeUint16(b))
	l := int(bele.BeUint16(b[2:]))
	if len(b) < attrHeaderSize+l {
		return nil, 0, base.NewErrStunShortBuffer(attrHeaderSize+l, len(b), "unpack attribute value")
	}
	consumed = attrHeaderSize + l

	attr, err = unpackAttrValue(t, b[attrHeaderSize:consumed])
	if err != nil {
		return nil, consumed, err
	}
	return attr, consumed, nil
}

func unpackAttrValue(t AttrType, v []byte) (Attribute, error) {
	switch t {
	case AttrTypeMappedAddress,
		AttrTypeResponseAddress,
		AttrTypeSourceAddress,
		AttrTypeChangedAddress,
		AttrTypeReflectedFrom:
		a, err := unpackAddress(t, v)
		if err != nil {
			return nil, err
		}
		return a.as(t), nil
	case AttrTypeChangeRequest:
		return unpackChangeRequest(v)
	case AttrTypeUsername:
		s, err := unpackText(t, v)
		if err != nil {
			return nil, err
		}
		return Username(s), nil
	case AttrTypePassword:
		s, err := unpackText(t, v)
		if err != nil {
			return nil, err
		}
		return Password(s), nil
	case AttrTypeMessageIntegrity:
		return unpackMessageIntegrity(v)
	case AttrTypeErrorCode:
		return unpackErrorCode(v)
	case AttrTypeUnknownAttributes:
		return unpackUnknownAttributes(v)
	}
	return nil, fmt.Errorf("%w. type=0x%04x", base.ErrStunUnknownAttr, uint16(t))
}

// ----- address -------------------------------------------------------------------------------------------------------

//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |x x x x x x x x|    Family     |           Port                |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                             Address                           |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

// Address 地址类属性共用的结构，目前只支持ipv4
type Address struct {
	Family uint8
	Port   uint16
	Ip     net.IP
}

func NewAddress(ip net.IP, port int) Address {
	return Address{
		Family: FamilyIpv4,
		Port:   uint16(port),
		Ip:     ip.To4(),
	}
}

func (a Address) UdpAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: a.Ip, Port: int(a.Port)}
}

func (a Address) String() string {
	return net.JoinHostPort(a.Ip.String(), strconv.Itoa(int(a.Port)))
}

func (a Address) pack() ([]byte, error) {
	if a.Family != FamilyIpv4 {
		return nil, base.NewErrStunUnsupportedFamily(a.Family)
	}
	ip4 := a.Ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%w. ip=%s", base.ErrStunUnsupportedFamily, a.Ip)
	}
	out := make([]byte, addressValueSize)
	out[0] = 0
	out[1] = a.Family
	bele.BePutUint16(out[2:], a.Port)
	copy(out[4:], ip4)
	return out, nil
}

func (a Address) as(t AttrType) Attribute {
	switch t {
	case AttrTypeMappedAddress:
		return MappedAddress(a)
	case AttrTypeResponseAddress:
		return ResponseAddress(a)
	case AttrTypeSourceAddress:
		return SourceAddress(a)
	case AttrTypeChangedAddress:
		return ChangedAddress(a)
	case AttrTypeReflectedFrom:
		return ReflectedFrom(a)
	}
	return nil
}

func unpackAddress(t AttrType, v []byte) (a Address, err error) {
	if len(v) != addressValueSize {
		return a, base.NewErrStunInvalidAttrLength(uint16(t), addressValueSize, len(v))
	}
	// v[0] 保留字段，忽略
	a.Family = v[1]
	if a.Family != FamilyIpv4 {
		return a, base.NewErrStunUnsupportedFamily(a.Family)
	}
	a.Port = bele.BeUint16(v[2:])
	a.Ip = net.IPv4(v[4], v[5], v[6], v[7]).To4()
	return a, nil
}

// MappedAddress 对端在外网视角下的地址，binding response中携带
type MappedAddress Address

func NewMappedAddress(ip net.IP, port int) MappedAddress {
	return MappedAddress(NewAddress(ip, port))
}

func (a MappedAddress) Type() AttrType        { return AttrTypeMappedAddress }
func (a MappedAddress) Pack() ([]byte, error) { return Address(a).pack() }
func (a MappedAddress) String() string        { return Address(a).String() }
func (MappedAddress) isAttribute()            {}

// ResponseAddress 请求方希望回复发往的地址
type ResponseAddress Address

func NewResponseAddress(ip net.IP, port int) ResponseAddress {
	return ResponseAddress(NewAddress(ip, port))
}

func (a ResponseAddress) Type() AttrType        { return AttrTypeResponseAddress }
func (a ResponseAddress) Pack() ([]byte, error) { return Address(a).pack() }
func (a ResponseAddress) String() string        { return Address(a).String() }
func (ResponseAddress) isAttribute()            {}

// SourceAddress 服务端发送回复所使用的地址
type SourceAddress Address

func NewSourceAddress(ip net.IP, port int) SourceAddress {
	return SourceAddress(NewAddress(ip, port))
}

func (a SourceAddress) Type() AttrType        { return AttrTypeSourceAddress }
func (a SourceAddress) Pack() ([]byte, error) { return Address(a).pack() }
func (a SourceAddress) String() string        { return Address(a).String() }
func (SourceAddress) isAttribute()            {}

// ChangedAddress 如果请求携带了change request，服务端将从该地址回复
type ChangedAddress Address

func NewChangedAddress(ip net.IP, port int) ChangedAddress {
	return ChangedAddress(NewAddress(ip, port))
}

func (a ChangedAddress) Type() AttrType        { return AttrTypeChangedAddress }
func (a ChangedAddress) Pack() ([]byte, error) { return Address(a).pack() }
func (a ChangedAddress) String() string        { return Address(a).String() }
func (ChangedAddress) isAttribute()            {}

type ReflectedFrom Address

func NewReflectedFrom(ip net.IP, port int) ReflectedFrom {
	return ReflectedFrom(NewAddress(ip, port))
}

func (a ReflectedFrom) Type() AttrType        { return AttrTypeReflectedFrom }
func (a ReflectedFrom) Pack() ([]byte, error) { return Address(a).pack() }
func (a ReflectedFrom) String() string        { return Address(a).String() }
func (ReflectedFrom) isAttribute()            {}

// ----- change request ------------------------------------------------------------------------------------------------

//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 A B 0|
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

type ChangeRequest struct {
	ChangeIp   bool
	ChangePort bool
}

func (c ChangeRequest) Type() AttrType { return AttrTypeChangeRequest }

func (c ChangeRequest) Pack() ([]byte, error) {
	out := make([]byte, changeRequestValueSize)
	if c.ChangeIp {
		out[3] |= changeRequestFlagIp
	}
	if c.ChangePort {
		out[3] |= changeRequestFlagPort
	}
	return out, nil
}

func (ChangeRequest) isAttribute() {}

func unpackChangeRequest(v []byte) (c ChangeRequest, err error) {
	if len(v) != changeRequestValueSize {
		return c, base.NewErrStunInvalidAttrLength(uint16(AttrTypeChangeRequest), changeRequestValueSize, len(v))
	}
	c.ChangeIp = v[3]&changeRequestFlagIp != 0
	c.ChangePort = v[3]&changeRequestFlagPort != 0
	return c, nil
}

// ----- username & password -------------------------------------------------------------------------------------------

type Username string

func (u Username) Type() AttrType        { return AttrTypeUsername }
func (u Username) Pack() ([]byte, error) { return []byte(u), nil }
func (Username) isAttribute()            {}

type Password string

func (p Password) Type() AttrType        { return AttrTypePassword }
func (p Password) Pack() ([]byte, error) { return []byte(p), nil }
func (Password) isAttribute()            {}

func unpackText(t AttrType, v []byte) (string, error) {
	if !utf8.Valid(v) {
		return "", fmt.Errorf("%w. type=%s", base.ErrStunInvalidUtf8, t)
	}
	return string(v), nil
}

// ----- message integrity ---------------------------------------------------------------------------------------------

// MessageIntegrity 20字节的HMAC-SHA1摘要。
// 只做编解码，不做计算和校验
type MessageIntegrity [messageIntegrityValueSize]byte

func (m MessageIntegrity) Type() AttrType { return AttrTypeMessageIntegrity }

func (m MessageIntegrity) Pack() ([]byte, error) {
	out := make([]byte, messageIntegrityValueSize)
	copy(out, m[:])
	return out, nil
}

func (MessageIntegrity) isAttribute() {}

func unpackMessageIntegrity(v []byte) (m MessageIntegrity, err error) {
	if len(v) != messageIntegrityValueSize {
		return m, base.NewErrStunInvalidAttrLength(uint16(AttrTypeMessageIntegrity), messageIntegrityValueSize, len(v))
	}
	copy(m[:], v)
	return m, nil
}

// ----- error code ----------------------------------------------------------------------------------------------------

//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                   0                     |Class|     Number    |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |      Reason Phrase (variable)                                ..
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

type ErrorCode struct {
	Code   int
	Reason string
}

func NewErrorCode(code int, reason string) ErrorCode {
	return ErrorCode{
		Code:   code,
		Reason: reason,
	}
}

// Class 百位
func (e ErrorCode) Class() uint8 {
	return uint8(e.Code / 100)
}

// Number 十位和个位
func (e ErrorCode) Number() uint8 {
	return uint8(e.Code % 100)
}

func (e ErrorCode) Type() AttrType { return AttrTypeErrorCode }

func (e ErrorCode) Pack() ([]byte, error) {
	if e.Code < 0 || e.Code/100 > 0xFF {
		return nil, fmt.Errorf("%w. code=%d", base.ErrStunInvalidErrorCode, e.Code)
	}
	out := make([]byte, errorCodeHeaderSize+len(e.Reason))
	out[2] = e.Class()
	out[3] = e.Number()
	copy(out[errorCodeHeaderSize:], e.Reason)
	return out, nil
}

func (ErrorCode) isAttribute() {}

func unpackErrorCode(v []byte) (e ErrorCode, err error) {
	if len(v) < errorCodeHeaderSize {
		return e, base.NewErrStunInvalidAttrLength(uint16(AttrTypeErrorCode), errorCodeHeaderSize, len(v))
	}
	// v[0:2] 保留字段，忽略
	class := v[2]
	number := v[3]
	if number >= 100 {
		return e, fmt.Errorf("%w. class=%d, number=%d", base.ErrStunInvalidErrorCode, class, number)
	}
	e.Code = int(class)*100 + int(number)
	e.Reason, err = unpackText(AttrTypeErrorCode, v[errorCodeHeaderSize:])
	return e, err
}

// ----- unknown attributes --------------------------------------------------------------------------------------------

// UnknownAttributes 420回复中携带，列出接收方无法理解的属性类型
type UnknownAttributes []uint16

func (u UnknownAttributes) Type() AttrType { return AttrTypeUnknownAttributes }

func (u UnknownAttributes) Pack() ([]byte, error) {
	out := make([]byte, 2*len(u))
	for i, t := range u {
		bele.BePutUint16(out[2*i:], t)
	}
	return out, nil
}

func (UnknownAttributes) isAttribute() {}

func unpackUnknownAttributes(v []byte) (UnknownAttributes, error) {
	if len(v)%2 != 0 {
		return nil, base.NewErrStunInvalidAttrLength(uint16(AttrTypeUnknownAttributes), len(v)+1, len(v))
	}
	u := make(UnknownAttributes, len(v)/2)
	for i := range u {
		u[i] = bele.BeUint16(v[2*i:])
	}
	return u, nil
}
