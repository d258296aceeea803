package main

import (
	"log"
	"ocpinode/server"
)

func main() {

	node, err := server.NewNode()
	if err != nil {
		log.Println("node initialization failed", err)
		return
	}
	node.Start()

}
