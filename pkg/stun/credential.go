// Copyright 2024, Chef.  All rights reserved.
// https://github.com/hmzdot/totem
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package stun

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/hmzdot/totem/pkg/base"
)

const (
	usernameRandomSize = 4
	passwordRandomSize = 16
)

// CredentialStore shared secret流程中签发的临时用户名和密码。
//
// 所有listener共享同一个实例，内部只有一把锁，锁只在一次插入或查询期间持有。
// 容量满了之后淘汰最早签发的。
type CredentialStore struct {
	rand io.Reader

	mutex sync.Mutex
	users *simplelru.LRU[string, string]
}

// NewCredentialStore
//
// @param size 最多保存的用户数，需大于0
// @param r    随机源，为nil时使用crypto/rand
func NewCredentialStore(size int, r io.Reader) (*CredentialStore, error) {
	users, err := simplelru.NewLRU[string, string](size, nil)
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = rand.Reader
	}
	return &CredentialStore{
		rand:  r,
		users: users,
	}, nil
}

// Issue 生成一对新的用户名和密码并保存
func (s *CredentialStore) Issue() (username string, password string, err error) {
	ub := make([]byte, usernameRandomSize)
	if _, err = io.ReadFull(s.rand, ub); err != nil {
		return "", "", err
	}
	pb := make([]byte, passwordRandomSize)
	if _, err = io.ReadFull(s.rand, pb); err != nil {
		return "", "", err
	}
	username = base.TotemSharedSecretUsernamePrefix + "-" + base.GenUkStunUser() + "-" + hex.EncodeToString(ub)
	password = hex.EncodeToString(pb)

	s.mutex.Lock()
	s.users.Add(username, password)
	s.mutex.Unlock()
	return username, password, nil
}

func (s *CredentialStore) Lookup(username string) (password string, ok bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.users.Get(username)
}

func (s *CredentialStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.users.Len()
}
