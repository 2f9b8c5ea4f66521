// Copyright 2019, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"net"
	"path/filepath"
)

// ---------------------------------------------------------------------------------------------------------------------

type ITotemServer interface {
	RunLoop() error
	Dispose()

	// StunLocalAddrList 实际绑定的stun地址，RunLoop 成功监听之后才有值
	StunLocalAddrList() []*net.UDPAddr
}

// NewTotemServer 创建一个totem server
//
// @param modOption: 定制化配置。可变参数，如果不关心，可以不填，具体字段见 Option
func NewTotemServer(modOption ...ModOption) ITotemServer {
	return NewServerManager(modOption...)
}

// ---------------------------------------------------------------------------------------------------------------------

type Option struct {
	// ConfFilename 配置文件。
	//
	// 注意，如果为空，内部会尝试从 DefaultConfFilenameList 读取默认配置文件
	ConfFilename string

	// ConfRawContent 配置内容，json格式。
	//
	// 注意，读取加载配置的优先级是 ConfRawContent > ConfFilename > DefaultConfFilenameList
	ConfRawContent []byte
}

var defaultOption = Option{}

type ModOption func(option *Option)

// DefaultConfFilenameList 没有指定配置文件时，按顺序作为优先级，找到第一个存在的并使用
var DefaultConfFilenameList = []string{
	filepath.FromSlash("totemserver.conf.json"),
	filepath.FromSlash("./conf/totemserver.conf.json"),
	filepath.FromSlash("../totemserver.conf.json"),
	filepath.FromSlash("../conf/totemserver.conf.json"),
	filepath.FromSlash("../../totemserver.conf.json"),
	filepath.FromSlash("../../conf/totemserver.conf.json"),
}
