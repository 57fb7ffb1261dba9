package main

import "github.com/gurneyalex/cubicweb-condor/cmd"

func main() {
	cmd.Execute()
}
