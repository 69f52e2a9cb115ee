package main

import (
	"github.com/opsdeck/opsdeck/internal/cli"
	"github.com/opsdeck/opsdeck/internal/common/logtrace"
)

func init() {
	logtrace.InitLogger()
}

func main() {
	cli.Execute()
}
