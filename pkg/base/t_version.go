// Copyright 2020, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "strings"

// 版本信息相关
// totem的一部分版本信息使用了naza.bininfo
// 另外，我们也在本文件提供另外一些信息

// TotemVersion 整个totem工程的版本号。注意，该变量由外部脚本修改维护，不要手动在代码中修改
const TotemVersion = "v0.1.0"

// ConfVersion totemserver的配置文件的版本号
const ConfVersion = "v0.1.0"

var (
	TotemLibraryName = "totem"
	TotemGithubRepo  = "github.com/hmzdot/totem"
	TotemGithubSite  = "https://github.com/hmzdot/totem"

	// TotemFullInfo e.g. totem v0.1.0 (github.com/hmzdot/totem)
	TotemFullInfo = TotemLibraryName + " " + TotemVersion + " (" + TotemGithubRepo + ")"

	// TotemVersionDot e.g. 0.1.0
	TotemVersionDot string
)

var (
	// TotemSharedSecretUsernamePrefix 签发的临时用户名前缀
	// e.g. totem0.1.0
	TotemSharedSecretUsernamePrefix string
)

func init() {
	TotemVersionDot = strings.TrimPrefix(TotemVersion, "v")

	TotemSharedSecretUsernamePrefix = TotemLibraryName + TotemVersionDot
}
