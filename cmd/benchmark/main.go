package main

import (
	"flag"
	"fmt"
	"sync"
	"time"

	"golang.org/x/net/http2/hpack"

	"github.com/chronnie/huffman"
)

var literals = []string{
	"www.example.com",
	"no-cache",
	"custom-key",
	"custom-value",
	"Mon, 21 Oct 2013 20:13:21 GMT",
	"https://www.example.com",
	"gzip, deflate, br",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko)",
	"foo=ASDJKHQKBZXOQWEOPIUAXQWEOIU; max-age=3600; version=1",
}

func main() {
	workers := flag.Int("workers", 8, "concurrent decoders sharing one table")
	rounds := flag.Int("n", 100_000, "decodes per worker")
	verify := flag.Bool("verify", true, "compare against golang.org/x/net/http2/hpack first")
	flag.Parse()

	table := huffman.DefaultTable()
	encoded := make([][]byte, len(literals))
	total := 0
	for i, s := range literals {
		encoded[i] = hpack.AppendHuffmanString(nil, s)
		total += len(encoded[i])
	}

	if *verify {
		for i, s := range literals {
			got, err := table.DecodeString(encoded[i])
			if err != nil {
				panic(err)
			}
			want, err := hpack.HuffmanDecodeToString(encoded[i])
			if err != nil {
				panic(err)
			}
			if got != s || got != want {
				panic(fmt.Sprintf("mismatch for %q: got %q", s, got))
			}
		}
		fmt.Println("Verified against x/net/http2/hpack")
	}

	fmt.Println("Started benchmark...")
	var wg sync.WaitGroup
	timeStart := time.Now()
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, 0, 256)
			for i := 0; i < *rounds; i++ {
				var err error
				buf, err = table.AppendDecode(buf[:0], encoded[i%len(encoded)])
				if err != nil {
					panic(err)
				}
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(timeStart)
	decodes := *workers * *rounds
	bytesIn := float64(decodes) * float64(total) / float64(len(encoded))
	fmt.Printf("Decoded %d literals in %s (%.1f MB/s of input)\n",
		decodes, elapsed, bytesIn/elapsed.Seconds()/1e6)
}
