package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rustup-go/rustup-go/cmd/rustup-go/cmd"
	"github.com/rustup-go/rustup-go/pkg/proxy"
	"github.com/rustup-go/rustup-go/pkg/rconfig"
	"github.com/rustup-go/rustup-go/pkg/toolchain"
)

func main() {
	stem := proxy.Stem(os.Args[0])
	if proxy.IsProxiedName(stem) {
		runProxied(stem)
		return
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runProxied handles the case where this binary is invoked under one of
// its proxied tools' names (argv[0] sniffing, spec.md §4.9 step 1), ending
// in a true process replacement rather than a spawned child.
func runProxied(stem string) {
	rcfg, err := rconfig.Load()
	if err != nil {
		fail(err)
	}
	settings, err := rcfg.LoadSettings()
	if err != nil {
		fail(err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		fail(err)
	}

	res, err := toolchain.Resolve("", cwd, settings)
	if err != nil {
		fail(err)
	}
	pfx, installed, err := toolchain.Prefix(rcfg.Home, res.Name)
	if err != nil {
		fail(err)
	}
	if !installed {
		fail(fmt.Errorf("toolchain '%s' is not installed; run `toolchain install %s`", res.Name, res.Name))
	}
	binPath, err := proxy.LocateBinary(pfx, stem, res.Name)
	if err != nil {
		fail(err)
	}
	self, err := os.Executable()
	if err != nil {
		fail(err)
	}
	childEnv, err := proxy.BuildChildEnv(os.Environ(), pfx, res.Name, filepath.Dir(self))
	if err != nil {
		fail(err)
	}

	if err := proxy.ReplaceProcess(binPath, os.Args[1:], childEnv); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
