// Copyright 2020, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/unique"

const (
	UkPreStunServer   = "STUNSERVER"
	UkPreStunListener = "STUNLISTENER"
	UkPreStunClient   = "STUNCLIENT"
	UkPreStunUser     = "USER"
)

func GenUkStunServer() string {
	return siUkStunServer.GenUniqueKey()
}

func GenUkStunListener() string {
	return siUkStunListener.GenUniqueKey()
}

func GenUkStunClient() string {
	return siUkStunClient.GenUniqueKey()
}

// GenUkStunUser 只保证进程内唯一，不保证不可预测，使用方需要自行拼接随机部分
func GenUkStunUser() string {
	return siUkStunUser.GenUniqueKey()
}

var (
	siUkStunServer   *unique.SingleGenerator
	siUkStunListener *unique.SingleGenerator
	siUkStunClient   *unique.SingleGenerator
	siUkStunUser     *unique.SingleGenerator
)

func init() {
	siUkStunServer = unique.NewSingleGenerator(UkPreStunServer)
	siUkStunListener = unique.NewSingleGenerator(UkPreStunListener)
	siUkStunClient = unique.NewSingleGenerator(UkPreStunClient)
	siUkStunUser = unique.NewSingleGenerator(UkPreStunUser)
}
