package main

import (
	"flag"
	"io"
	"log"
	"os"
	"sort"

	"github.com/cgarciae/minformer"
	"github.com/yargevad/filepathx"
)

func main() {
	inputPattern := flag.String("input", "",
		"shard file or glob of shard files to reconstruct")
	outputFile := flag.String("output", "detokenized.txt",
		"output file to write reconstructed text")
	flag.Parse()

	if *inputPattern == "" {
		flag.Usage()
		log.Fatal("Must provide -input")
	}

	paths, globErr := filepathx.Glob(*inputPattern)
	if globErr != nil {
		log.Fatal(globErr)
	}
	if len(paths) == 0 {
		log.Fatalf("No shard files match %s", *inputPattern)
	}
	sort.Strings(paths)

	outputHandle, createErr := os.Create(*outputFile)
	if createErr != nil {
		log.Fatal(createErr)
	}
	defer outputHandle.Close()

	encoder := minformer.NewCharEncoder()
	for _, path := range paths {
		log.Print("Reading ", path)
		reader, openErr := minformer.OpenShard(path)
		if openErr != nil {
			log.Fatal(openErr)
		}
		for {
			window, err := reader.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				log.Fatal(err)
			}
			segments, retokErr := minformer.Retokenize(window, encoder)
			if retokErr != nil {
				log.Fatal(retokErr)
			}
			for _, segment := range segments {
				if _, writeErr := outputHandle.WriteString(
					segment); writeErr != nil {
					log.Fatal(writeErr)
				}
			}
		}
		if closeErr := reader.Close(); closeErr != nil {
			log.Fatal(closeErr)
		}
	}
}
