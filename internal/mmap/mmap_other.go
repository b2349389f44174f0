// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

//go:build !unix

package mmap

import "os"

// Without mmap an anonymous region is ordinary memory.
func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), nil, nil
}

func osMapFile(*os.File, int) ([]byte, func([]byte) error, func([]byte) error, error) {
	return nil, nil, nil, ErrUnsupported
}
