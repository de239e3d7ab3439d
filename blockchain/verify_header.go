// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"time"

	"github.com/corvid-chain/corvidd/chaincfg"
)

// maxFutureBlockTime is how far into the future (relative to the
// verifying node's clock) a block's timestamp may be: the classic
// Bitcoin-family 2-hour rule.
const maxFutureBlockTime = 2 * time.Hour

// HeaderVerifier performs the structural checks a header must pass before
// the block it belongs to is accepted for full verification: proof of
// work and timestamp sanity. The header's version field is not checked.
type HeaderVerifier struct {
	header *IndexedBlockHeader
	params *chaincfg.Params
	now    time.Time
}

// NewHeaderVerifier constructs a HeaderVerifier for header against params,
// evaluated as of now.
func NewHeaderVerifier(header *IndexedBlockHeader, params *chaincfg.Params, now time.Time) *HeaderVerifier {
	return &HeaderVerifier{header: header, params: params, now: now}
}

// Check runs every structural header check, stopping at the first failure.
func (v *HeaderVerifier) Check() error {
	if err := v.checkProofOfWork(); err != nil {
		return err
	}
	return v.checkTimestamp()
}

func (v *HeaderVerifier) checkProofOfWork() error {
	target := chaincfg.CompactToBig(v.header.Header.Bits)
	if target.Sign() <= 0 || target.Cmp(v.params.PowLimit) > 0 {
		return fmt.Errorf("block target difficulty %x is outside limit", v.header.Header.Bits)
	}

	hashNum := HashToBig(v.header.Hash)
	if hashNum.Cmp(target) > 0 {
		return fmt.Errorf("block hash %s does not meet target difficulty", v.header.Hash)
	}
	return nil
}

func (v *HeaderVerifier) checkTimestamp() error {
	if v.header.Header.Timestamp.After(v.now.Add(maxFutureBlockTime)) {
		return fmt.Errorf("block timestamp %s is too far in the future", v.header.Header.Timestamp)
	}
	return nil
}
