// Copyright 2020, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package stun 实现经典STUN(rfc 3489)的一个子集：消息编解码、绑定请求服务端以及探测客户端
package stun

import "fmt"

// Simple Traversal of UDP Through NATs
//
// rfc 3489
//
// 0                   1                   2                   3
// 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |      STUN Message Type        |         Message Length        |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |
// |                          Transaction ID
// |
// |                                                               |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// 0                   1                   2                   3
// 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |         Type                  |            Length             |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                             Value                             ....
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// 注意，和rfc 5389不同，这里没有magic cookie，transaction id为完整的16字节，属性值也不做4字节对齐

const (
	HeaderSize        = 20
	TransactionIdSize = 16

	attrHeaderSize = 4

	// 属性部分的长度字段只有16位
	maxAttrSectionLength = 0xFFFF
)

const (
	FamilyIpv4 uint8 = 0x01

	addressValueSize          = 8
	changeRequestValueSize    = 4
	messageIntegrityValueSize = 20
	errorCodeHeaderSize       = 4

	changeRequestFlagIp   = 0x04
	changeRequestFlagPort = 0x02
)

// 服务端回复中使用的错误码
const (
	ErrorCodeBadRequest       = 400
	ErrorCodeUnauthorized     = 401
	ErrorCodeUnknownAttribute = 420
	ErrorCodeStaleCredentials = 430
	ErrorCodeIntegrityFailure = 431
	ErrorCodeMissingUsername  = 432
	ErrorCodeUseTls           = 433
	ErrorCodeServerError      = 500
	ErrorCodeGlobalFailure    = 600

	ReasonIpv4Only         = "ipv4 only"
	ReasonBadRequest       = "bad request"
	ReasonUnknownAttribute = "unknown attribute"
	ReasonUseTls           = "use tls"
	ReasonServerError      = "server error"
)

// ---------------------------------------------------------------------------------------------------------------------

type MessageType uint16

const (
	MessageTypeBindingRequest            MessageType = 0x0001
	MessageTypeBindingResponse           MessageType = 0x0101
	MessageTypeBindingErrorResponse      MessageType = 0x0111
	MessageTypeSharedSecretRequest       MessageType = 0x0002
	MessageTypeSharedSecretResponse      MessageType = 0x0102
	MessageTypeSharedSecretErrorResponse MessageType = 0x0112
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeBindingRequest,
		MessageTypeBindingResponse,
		MessageTypeBindingErrorResponse,
		MessageTypeSharedSecretRequest,
		MessageTypeSharedSecretResponse,
		MessageTypeSharedSecretErrorResponse:
		return true
	}
	return false
}

func (t MessageType) IsRequest() bool {
	return t == MessageTypeBindingRequest || t == MessageTypeSharedSecretRequest
}

// ErrorResponseType 请求类型对应的错误回复类型，非请求类型返回false
func (t MessageType) ErrorResponseType() (MessageType, bool) {
	switch t {
	case MessageTypeBindingRequest:
		return MessageTypeBindingErrorResponse, true
	case MessageTypeSharedSecretRequest:
		return MessageTypeSharedSecretErrorResponse, true
	}
	return 0, false
}

func (t MessageType) String() string {
	switch t {
	case MessageTypeBindingRequest:
		return "BindingRequest"
	case MessageTypeBindingResponse:
		return "BindingResponse"
	case MessageTypeBindingErrorResponse:
		return "BindingErrorResponse"
	case MessageTypeSharedSecretRequest:
		return "SharedSecretRequest"
	case MessageTypeSharedSecretResponse:
		return "SharedSecretResponse"
	case MessageTypeSharedSecretErrorResponse:
		return "SharedSecretErrorResponse"
	}
	return fmt.Sprintf("MessageType(0x%04x)", uint16(t))
}

// ---------------------------------------------------------------------------------------------------------------------

type AttrType uint16

const (
	AttrTypeMappedAddress     AttrType = 0x0001
	AttrTypeResponseAddress   AttrType = 0x0002
	AttrTypeChangeRequest     AttrType = 0x0003
	AttrTypeSourceAddress     AttrType = 0x0004
	AttrTypeChangedAddress    AttrType = 0x0005
	AttrTypeUsername          AttrType = 0x0006
	AttrTypePassword          AttrType = 0x0007
	AttrTypeMessageIntegrity  AttrType = 0x0008
	AttrTypeErrorCode         AttrType = 0x0009
	AttrTypeUnknownAttributes AttrType = 0x000A
	AttrTypeReflectedFrom     AttrType = 0x000B
)

func (t AttrType) Known() bool {
	return t >= AttrTypeMappedAddress && t <= AttrTypeReflectedFrom
}

// ComprehensionRequired 小于0x7fff的属性接收方必须理解，否则需要回复420
func (t AttrType) ComprehensionRequired() bool {
	return t <= 0x7FFF
}

func (t AttrType) String() string {
	switch t {
	case AttrTypeMappedAddress:
		return "MAPPED-ADDRESS"
	case AttrTypeResponseAddress:
		return "RESPONSE-ADDRESS"
	case AttrTypeChangeRequest:
		return "CHANGE-REQUEST"
	case AttrTypeSourceAddress:
		return "SOURCE-ADDRESS"
	case AttrTypeChangedAddress:
		return "CHANGED-ADDRESS"
	case AttrTypeUsername:
		return "USERNAME"
	case AttrTypePassword:
		return "PASSWORD"
	case AttrTypeMessageIntegrity:
		return "MESSAGE-INTEGRITY"
	case AttrTypeErrorCode:
		return "ERROR-CODE"
	case AttrTypeUnknownAttributes:
		return "UNKNOWN-ATTRIBUTES"
	case AttrTypeReflectedFrom:
		return "REFLECTED-FROM"
	}
	return fmt.Sprintf("AttrType(0x%04x)", uint16(t))
}
