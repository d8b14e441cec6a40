package main

import "github.com/iksnae/cursor-journal/cmd"

func main() {
	cmd.Execute()
}
