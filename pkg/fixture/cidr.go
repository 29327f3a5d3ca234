/*
Copyright 2025 the Unikorn Authors.
Copyright 2026 Nscale.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package fixture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
)

// ErrCIDRExhausted means every block in the tenant pool is in use, which
// on a shared cloud usually means somebody is leaking subnets.
var ErrCIDRExhausted = errors.New("tenant CIDR pool exhausted")

// BlockAllocator hands out consecutive fixed-width blocks from a tenant
// pool.  The allocator has no idea which blocks the cloud already uses;
// callers create optimistically and come back for the next block on an
// overlap conflict.
type BlockAllocator struct {
	pool netip.Prefix
	bits int
	// next is the network address of the next candidate block.
	next uint32
	// remaining counts unissued blocks.
	remaining int
}

// NewBlockAllocator carves the pool into blocks of the given prefix
// length, e.g. a /16 pool with 28 bits yields 4096 /28 candidates.
func NewBlockAllocator(cidr string, bits int) (*BlockAllocator, error) {
	pool, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, err
	}

	if !pool.Addr().Is4() {
		return nil, fmt.Errorf("tenant pool %s: only IPv4 supported", cidr)
	}

	if bits < pool.Bits() || bits > 30 {
		return nil, fmt.Errorf("block width /%d invalid for pool %s", bits, cidr)
	}

	pool = pool.Masked()

	start := binary.BigEndian.Uint32(pool.Addr().AsSlice())

	a := &BlockAllocator{
		pool:      pool,
		bits:      bits,
		next:      start,
		remaining: 1 << (bits - pool.Bits()),
	}

	return a, nil
}

// Next returns the next unissued block, or ErrCIDRExhausted once the
// pool is spent.
func (a *BlockAllocator) Next() (netip.Prefix, error) {
	if a.remaining == 0 {
		return netip.Prefix{}, fmt.Errorf("%w: %s in /%d blocks", ErrCIDRExhausted, a.pool, a.bits)
	}

	var addr [4]byte

	binary.BigEndian.PutUint32(addr[:], a.next)

	block := netip.PrefixFrom(netip.AddrFrom4(addr), a.bits)

	a.next += 1 << (32 - a.bits)
	a.remaining--

	return block, nil
}
