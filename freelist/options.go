// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package freelist

import (
	"log/slog"

	bitwise "github.com/absolutelightning/go-bitwise-trie"
)

// BestFit makes Alloc search every level of the index for the smallest
// block that fits.
const BestFit = -1

type options struct {
	logger *slog.Logger
	rounds int
	nobble bitwise.NobbleDir
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRounds bounds how many index levels Alloc looks through for a
// closer fit. Lower values trade wasted space for predictable latency.
func WithRounds(rounds int) Option {
	return func(o *options) {
		o.rounds = rounds
	}
}

// WithNobble overrides the replacement policy of the free block index.
// Block sizes are multiples of 8, so it defaults to NobbleZeros.
func WithNobble(dir bitwise.NobbleDir) Option {
	return func(o *options) {
		o.nobble = dir
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.DiscardHandler),
		rounds: BestFit,
		nobble: bitwise.NobbleZeros,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
