package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/chronnie/huffman"
)

// RFC 7541 Appendix C.4.1, a request header block with Huffman literals.
const requestBlock = "828684418cf1e3c2e5f23a6ba0ab90f4ff"

func main() {
	inputs := os.Args[1:]
	if len(inputs) == 0 {
		inputs = []string{"f1e3c2e5f23a6ba0ab90f4ff", "a8eb10649cbf", "ff"}
	}

	for _, arg := range inputs {
		data, err := hex.DecodeString(arg)
		if err != nil {
			fmt.Printf("%s: %v\n", arg, err)
			continue
		}
		s, err := huffman.Decode(data)
		if err != nil {
			fmt.Printf("%s: %v\n", arg, err)
			continue
		}
		fmt.Printf("%s: %q\n", arg, s)
	}

	block, _ := hex.DecodeString(requestBlock)
	decoder := huffman.GetHeaderDecoder()
	defer huffman.PutHeaderDecoder(decoder)

	fields, err := decoder.Decode(block)
	if err != nil {
		panic(err)
	}
	for _, f := range fields {
		fmt.Printf("%s: %s\n", f.Name, f.Value)
	}
}
