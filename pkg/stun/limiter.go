// Copyright 2024, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package stun

import (
	"net"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/time/rate"
)

// SourceLimiter 按来源ip限速，每个ip一个令牌桶，桶的数量由LRU限制
type SourceLimiter struct {
	limit rate.Limit
	burst int

	mutex   sync.Mutex
	buckets *simplelru.LRU[string, *rate.Limiter]
}

// NewSourceLimiter
//
// @param avgPerSec 每个来源ip每秒允许的平均包数
// @param burst     每个来源ip允许的突发包数
// @param cacheSize 最多跟踪的来源ip个数
func NewSourceLimiter(avgPerSec float64, burst int, cacheSize int) (*SourceLimiter, error) {
	buckets, err := simplelru.NewLRU[string, *rate.Limiter](cacheSize, nil)
	if err != nil {
		return nil, err
	}
	return &SourceLimiter{
		limit:   rate.Limit(avgPerSec),
		burst:   burst,
		buckets: buckets,
	}, nil
}

// Allow 返回false表示该来源超过了限速，包应该被丢弃
func (l *SourceLimiter) Allow(ip net.IP) bool {
	key := ip.String()

	l.mutex.Lock()
	defer l.mutex.Unlock()
	bkt, ok := l.buckets.Get(key)
	if !ok {
		bkt = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Add(key, bkt)
	}
	return bkt.Allow()
}
