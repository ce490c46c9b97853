package main

import "runway-live-backend/cmd"

func main() {
	cmd.Run()
}
