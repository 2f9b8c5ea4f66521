// Copyright 2024, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package stun

import (
	"encoding/hex"
	"errors"
	"net"

	"github.com/hmzdot/totem/pkg/base"
)

// Dispatcher 服务端单个udp包的处理逻辑，和socket无关。
//
// 不同socket上的包会并发调用同一个 Dispatcher ，除 CredentialStore 外没有可变状态。
type Dispatcher struct {
	uniqueKey   string
	credentials *CredentialStore

	badRequestReplyEnable bool

	// 异常包在debug级别下只打印前若干个的十六进制内容
	malformedDump *base.LogDump
}

const malformedDumpMaxNum = 16

func NewDispatcher(modOptions ...ModServerOption) (*Dispatcher, error) {
	option := defaultServerOption
	for _, fn := range modOptions {
		fn(&option)
	}
	return newDispatcher(base.GenUkStunServer(), option)
}

func newDispatcher(uniqueKey string, option ServerOption) (*Dispatcher, error) {
	d := &Dispatcher{
		uniqueKey:             uniqueKey,
		badRequestReplyEnable: option.BadRequestReplyEnable,
		malformedDump:         base.NewLogDump(Log, malformedDumpMaxNum),
	}
	if option.SharedSecretEnable {
		var err error
		d.credentials, err = NewCredentialStore(option.SharedSecretCacheSize, option.Rand)
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Credentials 未开启shared secret时返回nil
func (d *Dispatcher) Credentials() *CredentialStore {
	return d.credentials
}

// OnPacket 处理一个收到的udp包
//
// @return resp 需要回复给<raddr>的数据
// @return ok   false表示该包被丢弃，不需要回复
func (d *Dispatcher) OnPacket(b []byte, raddr *net.UDPAddr) (resp []byte, ok bool) {
	msg, err := UnpackMessage(b)
	if err != nil {
		return d.onBadPacket(b, msg, raddr, err)
	}

	switch msg.Header.Type {
	case MessageTypeBindingRequest:
		resp, err = d.handleBinding(msg, raddr)
	case MessageTypeSharedSecretRequest:
		resp, err = d.handleShared(msg, raddr)
	default:
		// 不回复任何response类型的包，避免两端互相回复形成环路
		Log.Warnf("[%s] unexpected message type, drop it. type=%s, raddr=%s", d.uniqueKey, msg.Header.Type, raddr)
		metricPackets.WithLabelValues(packetResultUnexpected).Inc()
		return nil, false
	}
	if err != nil {
		Log.Errorf("[%s] pack response failed. type=%s, raddr=%s, err=%+v", d.uniqueKey, msg.Header.Type, raddr, err)
		return nil, false
	}
	metricPackets.WithLabelValues(packetResultHandled).Inc()
	return resp, true
}

func (d *Dispatcher) onBadPacket(b []byte, msg Message, raddr *net.UDPAddr, err error) ([]byte, bool) {
	metricPackets.WithLabelValues(packetResultMalformed).Inc()
	if d.malformedDump.ShouldDump() {
		d.malformedDump.Outf("[%s] malformed packet. raddr=%s, len=%d, hex=\n%s", d.uniqueKey, raddr, len(b), hex.Dump(b))
	}

	// 头部都解析不出来，或者不是请求，直接丢弃
	errType, isRequest := msg.Header.Type.ErrorResponseType()
	if !isRequest {
		Log.Warnf("[%s] unpack message failed, drop it. raddr=%s, err=%+v", d.uniqueKey, raddr, err)
		return nil, false
	}

	var (
		resp    []byte
		packErr error
	)
	var unknownErr *UnknownAttributesError
	if errors.As(err, &unknownErr) {
		Log.Warnf("[%s] request with unknown attributes. type=%s, raddr=%s, types=%04x",
			d.uniqueKey, msg.Header.Type, raddr, unknownErr.Types)
		resp, packErr = packResponse(errType, msg.Header.TransactionId,
			NewErrorCode(ErrorCodeUnknownAttribute, ReasonUnknownAttribute),
			UnknownAttributes(unknownErr.Types))
	} else {
		if !d.badRequestReplyEnable {
			Log.Warnf("[%s] bad request, drop it. type=%s, raddr=%s, err=%+v", d.uniqueKey, msg.Header.Type, raddr, err)
			return nil, false
		}
		Log.Warnf("[%s] bad request. type=%s, raddr=%s, err=%+v", d.uniqueKey, msg.Header.Type, raddr, err)
		resp, packErr = packResponse(errType, msg.Header.TransactionId,
			NewErrorCode(ErrorCodeBadRequest, ReasonBadRequest))
	}
	if packErr != nil {
		Log.Errorf("[%s] pack error response failed. err=%+v", d.uniqueKey, packErr)
		return nil, false
	}
	return resp, true
}

func (d *Dispatcher) handleBinding(msg Message, raddr *net.UDPAddr) ([]byte, error) {
	id := msg.Header.TransactionId

	ip4 := raddr.IP.To4()
	if ip4 == nil {
		Log.Warnf("[%s] binding request from non-ipv4 source. raddr=%s, tid=%s", d.uniqueKey, raddr, id)
		return packResponse(MessageTypeBindingErrorResponse, id, NewErrorCode(ErrorCodeBadRequest, ReasonIpv4Only))
	}

	// TODO(chef): CHANGE-REQUEST需要从其他监听地址回复，目前忽略，始终从收到请求的socket回复
	if cr, ok := msg.ChangeRequest(); ok && (cr.ChangeIp || cr.ChangePort) {
		Log.Debugf("[%s] change request ignored. raddr=%s, ip=%t, port=%t", d.uniqueKey, raddr, cr.ChangeIp, cr.ChangePort)
	}

	Log.Debugf("[%s] binding request. raddr=%s, tid=%s", d.uniqueKey, raddr, id)
	return packResponse(MessageTypeBindingResponse, id, NewMappedAddress(ip4, raddr.Port))
}

func (d *Dispatcher) handleShared(msg Message, raddr *net.UDPAddr) ([]byte, error) {
	id := msg.Header.TransactionId

	if d.credentials == nil {
		Log.Infof("[%s] shared secret disabled. raddr=%s, tid=%s", d.uniqueKey, raddr, id)
		return packResponse(MessageTypeSharedSecretErrorResponse, id, NewErrorCode(ErrorCodeUseTls, ReasonUseTls))
	}

	username, password, err := d.credentials.Issue()
	if err != nil {
		Log.Errorf("[%s] issue credential failed. raddr=%s, err=%+v", d.uniqueKey, raddr, err)
		return packResponse(MessageTypeSharedSecretErrorResponse, id, NewErrorCode(ErrorCodeServerError, ReasonServerError))
	}
	metricCredentialsIssued.Inc()
	Log.Infof("[%s] issue credential. raddr=%s, username=%s", d.uniqueKey, raddr, username)
	return packResponse(MessageTypeSharedSecretResponse, id, Username(username), Password(password))
}

func packResponse(typ MessageType, id TransactionId, attrs ...Attribute) ([]byte, error) {
	m := NewMessage(NewHeader(typ, id), attrs...)
	b, err := m.Pack()
	if err != nil {
		return nil, err
	}
	metricResponses.WithLabelValues(typ.String()).Inc()
	return b, nil
}
