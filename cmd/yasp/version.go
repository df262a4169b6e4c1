package main

import (
	"fmt"
	"runtime"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func showVersion() {
	fmt.Printf("yasp %s\n", Version)
	fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
