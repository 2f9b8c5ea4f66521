// Copyright 2020, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package stun

import (
	"errors"
	"fmt"

	"github.com/hmzdot/totem/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

// Message 一个完整的STUN消息，属性的顺序和线上顺序一致
type Message struct {
	Header     Header
	Attributes []Attribute
}

func NewMessage(h Header, attrs ...Attribute) Message {
	return Message{
		Header:     h,
		Attributes: attrs,
	}
}

// Pack 头部中的length字段由属性部分实际序列化后的长度决定
func (m *Message) Pack() ([]byte, error) {
	attrList := make([][]byte, 0, len(m.Attributes))
	length := 0
	for _, a := range m.Attributes {
		b, err := PackAttribute(a)
		if err != nil {
			return nil, err
		}
		attrList = append(attrList, b)
		length += len(b)
	}
	if length > maxAttrSectionLength {
		return nil, fmt.Errorf("%w. length=%d", base.ErrStunAttrValueTooLarge, length)
	}

	out := make([]byte, HeaderSize+length)
	if err := PackHeaderTo(out, m.Header, length); err != nil {
		return nil, err
	}
	pos := HeaderSize
	for _, b := range attrList {
		pos += copy(out[pos:], b)
	}
	return out, nil
}

// FindAttribute 返回第一个类型为<t>的属性
func (m *Message) FindAttribute(t AttrType) (Attribute, bool) {
	for _, a := range m.Attributes {
		if a.Type() == t {
			return a, true
		}
	}
	return nil, false
}

func (m *Message) MappedAddress() (MappedAddress, bool) {
	a, ok := m.FindAttribute(AttrTypeMappedAddress)
	if !ok {
		return MappedAddress{}, false
	}
	return a.(MappedAddress), true
}

func (m *Message) ErrorCode() (ErrorCode, bool) {
	a, ok := m.FindAttribute(AttrTypeErrorCode)
	if !ok {
		return ErrorCode{}, false
	}
	return a.(ErrorCode), true
}

func (m *Message) ChangeRequest() (ChangeRequest, bool) {
	a, ok := m.FindAttribute(AttrTypeChangeRequest)
	if !ok {
		return ChangeRequest{}, false
	}
	return a.(ChangeRequest), true
}

// UnknownAttributesError 消息中存在接收方必须理解但无法识别的属性
type UnknownAttributesError struct {
	Types []uint16
}

func (e *UnknownAttributesError) Error() string {
	return fmt.Sprintf("%s. types=%04x", base.ErrStunUnknownAttr.Error(), e.Types)
}

func (e *UnknownAttributesError) Unwrap() error {
	return base.ErrStunUnknownAttr
}

// UnpackMessage 解析一个完整的udp包
//
// 头部声明的长度必须和<b>中属性部分的长度完全一致，每个属性的解析都被限制在声明的长度之内。
// 类型未知且大于0x7fff的属性直接跳过；小于等于0x7fff的未知属性收集起来，
// 以 *UnknownAttributesError 返回，此时返回的Message中的Header和其他属性依然有效。
//
// 函数调用结束后，不持有参数<b>的内存块
func UnpackMessage(b []byte) (m Message, err error) {
	var length int
	m.Header, length, err = UnpackHeader(b)
	if err != nil {
		return m, err
	}
	if len(b) != HeaderSize+length {
		return m, base.NewErrStunLengthMismatch(length, len(b)-HeaderSize)
	}

	var unknown []uint16
	pos := HeaderSize
	end := HeaderSize + length
	for pos < end {
		attr, n, err := UnpackAttribute(b[pos:end])
		if err != nil {
			if errors.Is(err, base.ErrStunUnknownAttr) {
				t := bele.BeUint16(b[pos:])
				if AttrType(t).ComprehensionRequired() {
					unknown = append(unknown, t)
				}
				pos += n
				continue
			}
			if errors.Is(err, base.ErrStunShortBuffer) {
				return m, fmt.Errorf("%w. declared=%d, attribute overrun at offset=%d: %v",
					base.ErrStunLengthMismatch, length, pos-HeaderSize, err)
			}
			return m, err
		}
		m.Attributes = append(m.Attributes, attr)
		pos += n
	}

	if len(unknown) > 0 {
		return m, &UnknownAttributesError{Types: unknown}
	}
	return m, nil
}
