// Copyright 2020, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package stun

import (
	"crypto/rand"
	"encoding/hex"
	"io"

	"github.com/hmzdot/totem/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

// TransactionId 请求和回复之间唯一的关联字段，回复中原样带回
type TransactionId [TransactionIdSize]byte

// NewTransactionId
//
// @param r 随机源，为nil时使用crypto/rand
func NewTransactionId(r io.Reader) (id TransactionId, err error) {
	if r == nil {
		r = rand.Reader
	}
	_, err = io.ReadFull(r, id[:])
	return
}

func (id TransactionId) String() string {
	return hex.EncodeToString(id[:])
}

type Header struct {
	Type          MessageType
	TransactionId TransactionId
}

func NewHeader(typ MessageType, id TransactionId) Header {
	return Header{
		Type:          typ,
		TransactionId: id,
	}
}

func NewHeaderWithRandomId(typ MessageType, r io.Reader) (Header, error) {
	id, err := NewTransactionId(r)
	if err != nil {
		return Header{}, err
	}
	return NewHeader(typ, id), nil
}

// PackHeaderTo
//
// @param out    输出参数，需保证len(out)>=HeaderSize
// @param length 属性部分的总长度
func PackHeaderTo(out []byte, h Header, length int) error {
	if len(out) < HeaderSize {
		return base.NewErrStunShortBuffer(HeaderSize, len(out), "pack header")
	}
	if length > maxAttrSectionLength {
		return base.NewErrStunLengthMismatch(maxAttrSectionLength, length)
	}
	bele.BePutUint16(out, uint16(h.Type))
	bele.BePutUint16(out[2:], uint16(length))
	copy(out[4:HeaderSize], h.TransactionId[:])
	return nil
}

// UnpackHeader 解析20字节的头部
//
// @return length 头部中声明的属性部分长度，没有和len(b)做校验
func UnpackHeader(b []byte) (h Header, length int, err error) {
	if len(b) < HeaderSize {
		return h, 0, base.NewErrStunShortBuffer(HeaderSize, len(b), "unpack header")
	}
	t := bele.BeUint16(b)
	if !MessageType(t).Valid() {
		return h, 0, base.NewErrStunInvalidMessageType(t)
	}
	h.Type = MessageType(t)
	length = int(bele.BeUint16(b[2:]))
	copy(h.TransactionId[:], b[4:HeaderSize])
	return h, length, nil
}
