package main

import "wakemeup/cmd/wakemeupd/cmd"

func main() {
	cmd.Execute()
}
