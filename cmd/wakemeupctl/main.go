package main

import "wakemeup/cmd/wakemeupctl/cmd"

func main() {
	cmd.Execute()
}
