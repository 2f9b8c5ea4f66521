// Copyright 2024, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/hmzdot/totem/pkg/base"
	"github.com/hmzdot/totem/pkg/stun"
	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazalog"
)

// 向stun server的某一个地址发送binding request，打印本端在外网视角下的地址
//
// Usage:
//   ./bin/totemclient -s 172.19.0.2:3478,172.19.0.2:3479,172.19.0.4:3478,172.19.0.4:3479 -i 3

func main() {
	defer nazalog.Sync()

	serverAddrList, index, timeoutMs, retryNum, changeIp, changePort, verbose := parseFlag()

	_ = nazalog.Init(func(option *nazalog.Option) {
		option.Filename = ""
		option.IsToStdout = true
		option.Level = nazalog.LevelWarn
		if verbose {
			option.Level = nazalog.LevelDebug
		}
	})

	c := stun.NewClient(func(option *stun.ClientOption) {
		option.ServerAddrList = serverAddrList
		option.TimeoutMs = timeoutMs
		option.RetryNum = retryNum
		option.ChangeIp = changeIp
		option.ChangePort = changePort
	})
	res, err := c.Query(index)
	if err != nil {
		var e *stun.ErrorResponseError
		if errors.As(err, &e) {
			_, _ = fmt.Fprintf(os.Stderr, "server %s replied error. code=%d, reason=%s\n", serverAddrList[index], e.Code, e.Reason)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "query %s failed. err=%+v\n", serverAddrList[index], err)
		}
		base.OsExitAndWaitPressIfWindows(1)
	}

	fmt.Printf("Sent binding request to %s\n", res.ServerAddr)
	fmt.Printf("My IP address is %s\n", res.MappedAddress)
	nazalog.Debugf("response. tid=%s, attributes=%+v", res.TransactionId, res.Response.Attributes)
}

func parseFlag() (serverAddrList []string, index int, timeoutMs int, retryNum int, changeIp bool, changePort bool, verbose bool) {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	s := flag.String("s", "", "specify stun server addr list, separated by comma, at most 4")
	i := flag.Int("i", 0, "specify which server addr to query")
	t := flag.Int("t", 1000, "specify timeout of each attempt in milliseconds")
	r := flag.Int("r", 2, "specify retry times after timeout")
	ci := flag.Bool("change_ip", false, "ask server to reply from alternate ip")
	cp := flag.Bool("change_port", false, "ask server to reply from alternate port")
	d := flag.Bool("d", false, "show debug log")
	flag.Parse()

	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.TotemFullInfo)
		os.Exit(0)
	}

	for _, item := range strings.Split(*s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			serverAddrList = append(serverAddrList, item)
		}
	}
	if len(serverAddrList) == 0 || len(serverAddrList) > stun.MaxServerAddrNum || *i < 0 || *i >= len(serverAddrList) {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  %s -s 172.19.0.2:3478,172.19.0.2:3479,172.19.0.4:3478,172.19.0.4:3479 -i 3
`, os.Args[0])
		base.OsExitAndWaitPressIfWindows(1)
	}
	return serverAddrList, *i, *t, *r, *ci, *cp, *d
}
