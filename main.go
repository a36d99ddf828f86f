package main

import "morph/cmd"

func main() {
	cmd.Execute()
}
