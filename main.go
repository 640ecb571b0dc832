package main

import "github.com/iksnae/deep-research/cmd"

func main() {
	cmd.Execute()
}
