//go:build tools
// +build tools

// Package chat_sync pins the tools run by go generate, so mockgen is
// versioned in go.mod like any other dependency.
package chat_sync

import (
	_ "go.uber.org/mock/mockgen"
)
