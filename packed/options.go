// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package packed

import (
	"log/slog"

	bitwise "github.com/absolutelightning/go-bitwise-trie"
)

type options struct {
	logger *slog.Logger
	nobble bitwise.NobbleDir
}

type Option func(*options)

// WithLogger sets the logger used for store lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithNobble sets the replacement policy of the store's index.
func WithNobble(dir bitwise.NobbleDir) Option {
	return func(o *options) {
		o.nobble = dir
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.DiscardHandler),
		nobble: bitwise.NobbleAlternate,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
