// Command boosterd is the application-launcher daemon described by
// SPEC_FULL.md: it keeps one pre-forked booster warm for a single booster
// type, hands it off to invokers over a datagram socket, and immediately
// forks a replacement.
package main

import "github.com/nemomobile/boosterd/internal/cli"

func main() {
	cli.Main()
}
