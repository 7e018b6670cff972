package main

/*
Example program for the imgsearch Go SDK.

Run it against a server started with "imgsearch serve --http :8080":
  1. Perform a health check.
  2. Print the catalog statistics.
  3. Search for the descriptor file given as the first argument.

Usage:
$ go run example.go /data/query.dsc
*/

import (
	"context"
	"fmt"
	"os"

	"imgsearch/client-sdk/Go/client"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: example <descriptor file>")
		os.Exit(2)
	}
	ctx := context.Background()
	c := client.NewClient("http://localhost:8080")

	// 1. Health check
	ok, err := c.HealthCheck(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Println("Health check:", ok)

	// 2. Catalog
	stats, err := c.Catalog(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Catalog %s: %d records, %d visual words, %s\n", stats.Name, stats.Records, stats.Leaves, stats.State)

	// 3. Search
	res, err := c.Search(ctx, os.Args[1], 5)
	if err != nil {
		panic(err)
	}
	for i, m := range res.Matches {
		fmt.Printf("%d. %s %.4f\n", i+1, m.Name, m.Score)
	}
}
