// Command tscclock inspects, calibrates and exercises the process-wide
// cycle clock.
//
// Usage:
//
//	go run ./cmd/tscclock info
//	go run ./cmd/tscclock calibrate --per-core
//	go run ./cmd/tscclock bench -n 10000000
//	go run ./cmd/tscclock monotonic --workers 8 --duration 5s
package main

import (
	"os"

	"k8s.io/klog/v2"
)

func main() {
	err := rootCmd.Execute()
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
