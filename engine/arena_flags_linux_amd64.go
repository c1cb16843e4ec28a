//go:build linux && amd64

package engine

import "golang.org/x/sys/unix"

// Keep the arena in the low 4GiB so relocated call thunks can address it
// with 32-bit immediates.
const arenaMapFlags = unix.MAP_32BIT
