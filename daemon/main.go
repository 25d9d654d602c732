package main

import (
	"log"
	"os"

	"github.com/Trinoooo/tcpmux/mux/cli"
)

func main() {
	wrapper := cli.NewWrapper()
	if err := wrapper.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}
