package main

import "github.com/audiolibrelab/irdecode/cmd"

func main() {
	cmd.Execute()
}
