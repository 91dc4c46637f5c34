package main

import "github.com/couchbaselabs/cbci-tools/cmd"

func main() {
	cmd.Execute()
}
