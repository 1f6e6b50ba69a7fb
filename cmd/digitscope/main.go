// Command digitscope serves digit predictions over HTTP or scores a model against an
// MNIST test set.
//
//	digitscope serve -model weights.json -addr :8080
//	digitscope eval -model weights.json -images t10k-images-idx3-ubyte.gz -labels t10k-labels-idx1-ubyte.gz
package main

import (
	"fmt"
	"log"
	"os"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <serve|eval> [flags]\n", os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "eval":
		err = runEval(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}
