package main

import "github.com/inkwell/inkwell/cmd"

func main() {
	cmd.Execute()
}
