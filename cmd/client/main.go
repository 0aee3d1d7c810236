// Package main provides a read-only CLI inspector for the market-data
// ingestion engine, querying cmd/ingestor's HTTP snapshot API.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "Ingestor server URL")

	venuesCmd := flag.NewFlagSet("venues", flag.ExitOnError)

	bookCmd := flag.NewFlagSet("book", flag.ExitOnError)
	bookVenue := bookCmd.String("venue", "binance", "Venue identifier")
	bookDepth := bookCmd.Int("depth", 10, "Number of price levels to show")

	tradesCmd := flag.NewFlagSet("trades", flag.ExitOnError)
	tradesVenue := tradesCmd.String("venue", "binance", "Venue identifier")
	tradesN := tradesCmd.Int("n", 20, "Number of recent trades to show")

	signalsCmd := flag.NewFlagSet("signals", flag.ExitOnError)
	signalsVenue := signalsCmd.String("venue", "binance", "Venue identifier")

	statsCmd := flag.NewFlagSet("stats", flag.ExitOnError)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	flag.Parse()

	switch os.Args[1] {
	case "venues":
		venuesCmd.Parse(os.Args[2:])
		getVenues(*serverURL)
	case "book":
		bookCmd.Parse(os.Args[2:])
		getBook(*serverURL, *bookVenue, *bookDepth)
	case "trades":
		tradesCmd.Parse(os.Args[2:])
		getTrades(*serverURL, *tradesVenue, *tradesN)
	case "signals":
		signalsCmd.Parse(os.Args[2:])
		getSignals(*serverURL, *signalsVenue)
	case "stats":
		statsCmd.Parse(os.Args[2:])
		getStats(*serverURL)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Market Data Engine Inspector

Usage:
  client <command> [options]

Commands:
  venues    List known venues
  book      View a venue's order book snapshot
  trades    View a venue's recent trades
  signals   View a venue's recent order-flow signals and big orders
  stats     View global engine statistics

Examples:
  client venues
  client book -venue binance -depth 10
  client trades -venue okx -n 50
  client signals -venue bybit
  client stats`)
}

func getVenues(serverURL string) {
	printJSONFrom(serverURL + "/venues")
}

func getBook(serverURL, venue string, depth int) {
	url := fmt.Sprintf("%s/venues/%s/snapshot?depth=%d", serverURL, venue, depth)
	body, err := getBody(url)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	var snap struct {
		Venue string `json:"Venue"`
		Bids  []struct {
			Price float64 `json:"Price"`
			Qty   float64 `json:"Qty"`
		} `json:"Bids"`
		Asks []struct {
			Price float64 `json:"Price"`
			Qty   float64 `json:"Qty"`
		} `json:"Asks"`
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}

	fmt.Printf("\n=== %s order book ===\n\n", venue)
	fmt.Println("ASKS:")
	for i := len(snap.Asks) - 1; i >= 0; i-- {
		a := snap.Asks[i]
		fmt.Printf("  %.8f : %.6f\n", a.Price, a.Qty)
	}
	fmt.Println("---")
	fmt.Println("BIDS:")
	for _, b := range snap.Bids {
		fmt.Printf("  %.8f : %.6f\n", b.Price, b.Qty)
	}
}

func getTrades(serverURL, venue string, n int) {
	url := fmt.Sprintf("%s/venues/%s/trades?n=%d", serverURL, venue, n)
	printJSONFrom(url)
}

func getSignals(serverURL, venue string) {
	url := fmt.Sprintf("%s/venues/%s/signals", serverURL, venue)
	printJSONFrom(url)
}

func getStats(serverURL string) {
	printJSONFrom(serverURL + "/stats")
}

func getBody(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func printJSONFrom(url string) {
	body, err := getBody(url)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	var obj interface{}
	if err := json.Unmarshal(body, &obj); err != nil {
		fmt.Println(string(body))
		return
	}
	pretty, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Println(string(pretty))
}
