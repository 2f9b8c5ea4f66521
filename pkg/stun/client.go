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
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/hmzdot/totem/pkg/base"
	"github.com/q191201771/naza/pkg/nazanet"
)

type ClientOption struct {
	// ServerAddrList 同一个逻辑服务端的多个地址，最多 MaxServerAddrNum 个。
	// 地址中不包含端口时使用 base.StunDefaultPort
	ServerAddrList []string

	// TimeoutMs 单次尝试等待回复的超时时间
	TimeoutMs int

	// RetryNum 超时后的重试次数，每次重试使用新的transaction id
	RetryNum int

	// ChangeIp 和 ChangePort 任意一个为true时，请求中携带CHANGE-REQUEST属性
	ChangeIp   bool
	ChangePort bool

	MaxPacketSize int

	// Rand transaction id的随机源，为nil时使用crypto/rand
	Rand io.Reader
}

var defaultClientOption = ClientOption{
	TimeoutMs:     1000,
	RetryNum:      2,
	MaxPacketSize: base.StunMaxPacketSize,
}

type ModClientOption func(option *ClientOption)

type QueryResult struct {
	ServerAddr    string
	TransactionId TransactionId

	// MappedAddress 服务端看到的本端地址
	MappedAddress MappedAddress

	// Response 完整的回复消息，其中可能包含其他属性
	Response Message
}

// ErrorResponseError 服务端回复了错误
type ErrorResponseError struct {
	Type    MessageType
	Code    int
	Reason  string
	Unknown []uint16
}

func (e *ErrorResponseError) Error() string {
	return fmt.Sprintf("%s. type=%s, code=%d, reason=%s", base.ErrStunErrorResponse.Error(), e.Type, e.Code, e.Reason)
}

func (e *ErrorResponseError) Unwrap() error {
	return base.ErrStunErrorResponse
}

type Client struct {
	uniqueKey string
	option    ClientOption
}

func NewClient(modOptions ...ModClientOption) *Client {
	option := defaultClientOption
	for _, fn := range modOptions {
		fn(&option)
	}
	return &Client{
		uniqueKey: base.GenUkStunClient(),
		option:    option,
	}
}

// Query 向 ClientOption.ServerAddrList 中的第<index>个地址发送binding request
func (c *Client) Query(index int) (QueryResult, error) {
	if index < 0 || index >= len(c.option.ServerAddrList) || index >= MaxServerAddrNum {
		return QueryResult{}, base.NewErrStunServerAddrIndex(index, len(c.option.ServerAddrList))
	}
	return c.QueryAddr(c.option.ServerAddrList[index])
}

// QueryAddr
//
// @param addr 填入server地址，如果不包含端口，则使用默认端口3478
func (c *Client) QueryAddr(addr string) (res QueryResult, err error) {
	addr = normalizeServerAddr(addr)

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return res, err
	}
	uc, err := nazanet.NewUdpConnection(func(option *nazanet.UdpConnectionOption) {
		option.Conn = udpConn
		option.RAddr = addr
		option.MaxReadPacketSize = c.option.MaxPacketSize
	})
	if err != nil {
		_ = udpConn.Close()
		return res, err
	}
	defer uc.Dispose()

	for i := 0; i <= c.option.RetryNum; i++ {
		res, err = c.queryOnce(uc, addr)
		if err == nil {
			Log.Debugf("[%s] query succ. server=%s, mapped=%s, tid=%s", c.uniqueKey, addr, res.MappedAddress, res.TransactionId)
			return res, nil
		}
		if !errors.Is(err, base.ErrStunTimeout) {
			return res, err
		}
		Log.Warnf("[%s] query timeout. server=%s, attempt=%d, err=%+v", c.uniqueKey, addr, i+1, err)
	}
	return res, err
}

func (c *Client) queryOnce(uc *nazanet.UdpConnection, addr string) (res QueryResult, err error) {
	res.ServerAddr = addr

	h, err := NewHeaderWithRandomId(MessageTypeBindingRequest, c.option.Rand)
	if err != nil {
		return res, err
	}
	res.TransactionId = h.TransactionId
	req := NewMessage(h)
	if c.option.ChangeIp || c.option.ChangePort {
		req.Attributes = append(req.Attributes, ChangeRequest{ChangeIp: c.option.ChangeIp, ChangePort: c.option.ChangePort})
	}
	b, err := req.Pack()
	if err != nil {
		return res, err
	}
	if err = uc.Write(b); err != nil {
		return res, err
	}

	deadline := time.Now().Add(time.Duration(c.option.TimeoutMs) * time.Millisecond)
	for {
		remain := time.Until(deadline)
		if remain <= 0 {
			return res, fmt.Errorf("%w. server=%s, timeout=%dms", base.ErrStunTimeout, addr, c.option.TimeoutMs)
		}
		// 向上取整到毫秒，保证每次尝试至少等待TimeoutMs
		rb, raddr, err := uc.ReadWithTimeout(int((remain + time.Millisecond - 1) / time.Millisecond))
		if err != nil {
			if isTimeout(err) {
				return res, fmt.Errorf("%w. server=%s, timeout=%dms", base.ErrStunTimeout, addr, c.option.TimeoutMs)
			}
			return res, err
		}

		msg, err := UnpackMessage(rb)
		if err != nil {
			Log.Warnf("[%s] unpack response failed, ignore it. raddr=%s, err=%+v", c.uniqueKey, raddr, err)
			continue
		}
		if msg.Header.TransactionId != h.TransactionId {
			Log.Warnf("[%s] ignore response. raddr=%s, err=%+v", c.uniqueKey, raddr,
				fmt.Errorf("%w. expected=%s, actual=%s", base.ErrStunTransactionIdMismatch, h.TransactionId, msg.Header.TransactionId))
			continue
		}
		res.Response = msg
		return res, onBindingResponse(&res)
	}
}

func onBindingResponse(res *QueryResult) error {
	msg := &res.Response
	switch msg.Header.Type {
	case MessageTypeBindingResponse:
		mapped, ok := msg.MappedAddress()
		if !ok {
			return base.ErrStunNoMappedAddress
		}
		res.MappedAddress = mapped
		return nil
	case MessageTypeBindingErrorResponse:
		e := &ErrorResponseError{Type: msg.Header.Type}
		if ec, ok := msg.ErrorCode(); ok {
			e.Code = ec.Code
			e.Reason = ec.Reason
		}
		if a, ok := msg.FindAttribute(AttrTypeUnknownAttributes); ok {
			e.Unknown = a.(UnknownAttributes)
		}
		return e
	}
	return fmt.Errorf("%w. type=%s", base.ErrStunUnexpectedResponse, msg.Header.Type)
}

func normalizeServerAddr(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, strconv.Itoa(base.StunDefaultPort))
	}
	return addr
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
