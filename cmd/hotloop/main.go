// Package main is a benchmark binary carrying the sample benchmarks.
package main

import (
	"github.com/weiihann/hotloop/bench"
	"github.com/weiihann/hotloop/cli"
	"github.com/weiihann/hotloop/samples"
)

func main() {
	reg := bench.NewRegistry()
	if err := samples.Register(reg); err != nil {
		panic(err)
	}

	cli.Main(reg)
}
