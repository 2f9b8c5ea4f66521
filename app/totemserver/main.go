// Copyright 2019, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hmzdot/totem/pkg/base"
	"github.com/hmzdot/totem/pkg/logic"
	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazalog"
)

func main() {
	defer nazalog.Sync()

	confFilename := parseFlag()
	totemServer := logic.NewTotemServer(func(option *logic.Option) {
		option.ConfFilename = confFilename
	})
	err := totemServer.RunLoop()
	if err != nil {
		nazalog.Errorf("server manager done with error. err=%+v", err)
		nazalog.Sync()
		base.OsExitAndWaitPressIfWindows(1)
	}
	nazalog.Infof("server manager done.")
}

func parseFlag() string {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	cf := flag.String("c", "", "specify conf file")
	flag.Parse()

	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.TotemFullInfo)
		os.Exit(0)
	}

	return *cf
}
