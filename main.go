package main

import "github.com/janina-ellinghaus/audio-producer/cmd"

func main() {
	cmd.Execute()
}
