package main

import "github.com/gboksm11/optimai/cmd"

func main() {
	cmd.Execute()
}
