package main

import "github.com/tilefan/tilefan/cmd"

func main() {
	cmd.Execute()
}
