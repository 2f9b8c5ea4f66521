// Copyright 2022, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"fmt"
	"sync/atomic"

	"github.com/q191201771/naza/pkg/nazalog"
)

// LogDump 按次数限制的调试日志，用于打印异常包的十六进制内容。
//
// 多个goroutine可以同时使用同一个 LogDump
type LogDump struct {
	log         nazalog.Logger
	debugMaxNum int32

	debugCount int32
}

// NewLogDump
//
// @param debugMaxNum: 日志最小级别为debug时，使用debug打印日志次数的阈值
func NewLogDump(log nazalog.Logger, debugMaxNum int) *LogDump {
	return &LogDump{
		log:         log,
		debugMaxNum: int32(debugMaxNum),
	}
}

// ShouldDump trace级别总是打印，debug级别最多打印 debugMaxNum 次，其他级别不打印
func (ld *LogDump) ShouldDump() bool {
	switch ld.log.GetOption().Level {
	case nazalog.LevelTrace:
		return true
	case nazalog.LevelDebug:
		// 达到阈值后不再累加，避免计数溢出后重新开始打印
		for {
			n := atomic.LoadInt32(&ld.debugCount)
			if n >= ld.debugMaxNum {
				return false
			}
			if atomic.CompareAndSwapInt32(&ld.debugCount, n, n+1) {
				return true
			}
		}
	}
	return false
}

// Outf
//
// 调用之前需调用 ShouldDump ，避免不需要打印时构造实参的开销，比如
// ld.Outf("hex=%s", hex.Dump(buf))
// 这个hex.Dump调用
func (ld *LogDump) Outf(format string, v ...interface{}) {
	ld.log.Out(ld.log.GetOption().Level, 3, fmt.Sprintf(format, v...))
}
