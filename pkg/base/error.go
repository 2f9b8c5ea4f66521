// Copyright 2021, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"fmt"
)

// ----- 通用的 ---------------------------------------------------------------------------------------------------------

var (
	ErrShortBuffer  = errors.New("totem: buffer too short")
	ErrFileNotExist = errors.New("totem: file not exist")
)

// ----- pkg/logic -----------------------------------------------------------------------------------------------------

var (
	ErrConfAddrListEmpty   = errors.New("totem.logic: stun addr list empty")
	ErrConfAddrListTooLong = errors.New("totem.logic: stun addr list too long")
	ErrConfInvalidValue    = errors.New("totem.logic: invalid conf value")
)

// ----- pkg/stun ------------------------------------------------------------------------------------------------------

var (
	// 解析类错误，只影响当前这一个udp包
	ErrStunShortBuffer        = errors.New("totem.stun: buffer too short")
	ErrStunInvalidMessageType = errors.New("totem.stun: invalid message type")
	ErrStunUnknownAttr        = errors.New("totem.stun: unknown attribute type")
	ErrStunInvalidAttrLength  = errors.New("totem.stun: invalid attribute length")
	ErrStunLengthMismatch     = errors.New("totem.stun: message length mismatch")
	ErrStunInvalidUtf8        = errors.New("totem.stun: invalid utf8 text")
	ErrStunUnsupportedFamily  = errors.New("totem.stun: unsupported address family")
	ErrStunInvalidErrorCode   = errors.New("totem.stun: invalid error code")
	ErrStunPacketTooLarge     = errors.New("totem.stun: packet too large")
	ErrStunAttrValueTooLarge  = errors.New("totem.stun: attribute value too large")

	// client侧
	ErrStunTransactionIdMismatch = errors.New("totem.stun: transaction id mismatch")
	ErrStunNoMappedAddress       = errors.New("totem.stun: no mapped address in response")
	ErrStunErrorResponse         = errors.New("totem.stun: error response")
	ErrStunUnexpectedResponse    = errors.New("totem.stun: unexpected response type")
	ErrStunTimeout               = errors.New("totem.stun: query timeout")
	ErrStunServerAddrIndex       = errors.New("totem.stun: server addr index out of range")

	// server侧
	ErrStunServerNotListened = errors.New("totem.stun: server not listened")
	ErrStunServerDisposed    = errors.New("totem.stun: server disposed")
)

func NewErrStunShortBuffer(need, actual int, msg string) error {
	return fmt.Errorf("%w. need=%d, actual=%d, msg=%s", ErrStunShortBuffer, need, actual, msg)
}

func NewErrStunInvalidMessageType(t uint16) error {
	return fmt.Errorf("%w. type=0x%04x", ErrStunInvalidMessageType, t)
}

func NewErrStunInvalidAttrLength(attrType uint16, expected, actual int) error {
	return fmt.Errorf("%w. type=0x%04x, expected=%d, actual=%d", ErrStunInvalidAttrLength, attrType, expected, actual)
}

func NewErrStunLengthMismatch(declared, actual int) error {
	return fmt.Errorf("%w. declared=%d, actual=%d", ErrStunLengthMismatch, declared, actual)
}

func NewErrStunUnsupportedFamily(family uint8) error {
	return fmt.Errorf("%w. family=%d", ErrStunUnsupportedFamily, family)
}

func NewErrStunPacketTooLarge(size, max int) error {
	return fmt.Errorf("%w. size=%d, max=%d", ErrStunPacketTooLarge, size, max)
}

func NewErrStunServerAddrIndex(index, size int) error {
	return fmt.Errorf("%w. index=%d, size=%d", ErrStunServerAddrIndex, index, size)
}
