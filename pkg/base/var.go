// Copyright 2021, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

// ----- stun --------------------
var (
	// StunDefaultPort 标准端口，地址中不包含端口时使用
	StunDefaultPort = 3478

	// StunAlternatePort 备用端口，和 StunDefaultPort 一起组成经典的四个监听地址
	StunAlternatePort = 3479

	// StunMaxPacketSize 单个udp包允许的最大长度，超过的包直接丢弃
	StunMaxPacketSize = 1024
)
