package main

import "github.com/icco/genidi-core/cmd"

func main() {
	cmd.Execute()
}
