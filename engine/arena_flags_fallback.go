//go:build !(linux && amd64)

package engine

const arenaMapFlags = 0
