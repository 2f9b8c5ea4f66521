// Copyright 2020, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package base 提供被其他多个package依赖的基础内容
package base

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

var startTime string

var readableTimeLayout = "2006-01-02 15:04:05.999 Z0700 MST"

// ReadableNowTime 当前时间，可读字符串形式
func ReadableNowTime() string {
	return time.Now().Format(readableTimeLayout)
}

func GetWd() string {
	dir, _ := os.Getwd()
	return dir
}

func LogoutStartInfo() {
	Log.Infof("     start: %s", startTime)
	Log.Infof("        wd: %s", GetWd())
	Log.Infof("      args: %s", strings.Join(os.Args, " "))
	Log.Infof("   bininfo: %s", bininfo.StringifySingleLine())
	Log.Infof("   version: %s", TotemFullInfo)
	Log.Infof("    github: %s", TotemGithubSite)
}

// ReadConfigFile 读取配置文件
//
// @param theConfigFile 命令行中指定的配置文件，为空时按顺序尝试 defaultConfigFiles
func ReadConfigFile(theConfigFile string, defaultConfigFiles []string) ([]byte, error) {
	if theConfigFile == "" {
		Log.Warnf("config file did not specify in the command line, try to load it in the usual path.")
		for _, dcf := range defaultConfigFiles {
			fi, err := os.Stat(dcf)
			if err == nil && fi.Size() > 0 && !fi.IsDir() {
				Log.Warnf("%s exist. using it as config file.", dcf)
				theConfigFile = dcf
				break
			}
			Log.Warnf("%s not exist.", dcf)
		}
		if theConfigFile == "" {
			return nil, nazaerrors.Wrap(ErrFileNotExist)
		}
	}

	rawContent, err := os.ReadFile(theConfigFile)
	if err != nil {
		return nil, nazaerrors.Wrap(err)
	}
	return rawContent, nil
}

// WrapReadConfigFile 同 ReadConfigFile ，失败时打印用法并退出进程
func WrapReadConfigFile(theConfigFile string, defaultConfigFiles []string, hookBeforeExit func()) []byte {
	rawContent, err := ReadConfigFile(theConfigFile, defaultConfigFiles)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read conf file failed. file=%s err=%+v\n", theConfigFile, err)
		flag.Usage()
		if hookBeforeExit != nil {
			hookBeforeExit()
		}
		OsExitAndWaitPressIfWindows(1)
	}
	return rawContent
}

func init() {
	startTime = ReadableNowTime()
}
