package main

import (
	cmd "github.com/inferbench/bench-server/cmd/bench"
)

func main() {
	cmd.Execute()
}
