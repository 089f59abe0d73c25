package main

import "pairsense-backend/cmd"

func main() {
	cmd.Run()
}
