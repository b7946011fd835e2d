// Command client is a minimal CLI test harness for the exchange server: it
// dials the TCP listener, sends place/cancel/heartbeat requests, and prints
// whatever acknowledgements come back. Adapted from the teacher's
// cmd/client/client.go with float64 prices/uint64 quantities replaced by
// the domain's integer cents and caller-supplied order ids.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"matchbroker/internal/matcher"
	"matchbroker/internal/wire"
)

var nextOrderID int64

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	owner := flag.String("owner", "", "Owner username (compulsory)")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'heartbeat']")

	ticker := flag.String("ticker", "ABC", "Ticker symbol")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit' or 'market'")
	priceCents := flag.Int64("price-cents", 10000, "Limit price in integer cents")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	flag.Parse()

	if *owner == "" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s as '%s'\n", *serverAddr, *owner)

	go readReports(conn)

	side := matcher.Buy
	if strings.ToLower(*sideStr) == "sell" {
		side = matcher.Sell
	}
	orderType := matcher.LimitOrder
	if strings.ToLower(*typeStr) == "market" {
		orderType = matcher.MarketOrder
	}

	switch strings.ToLower(*action) {
	case "place":
		for _, qty := range parseQuantities(*qtyStr) {
			id := atomic.AddInt64(&nextOrderID, 1)
			price := *priceCents
			if orderType == matcher.MarketOrder {
				price = 0
			}
			buf := wire.EncodeNewOrder(id, side, orderType, price, qty, *ticker, *owner)
			if _, err := conn.Write(buf); err != nil {
				log.Printf("failed to place order (qty %d): %v", qty, err)
				continue
			}
			fmt.Printf("-> sent order %d: %s %s %d @ %d\n", id, *sideStr, *ticker, qty, price)
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		buf := wire.EncodeCancelOrder(0, *ticker, *owner)
		if _, err := conn.Write(buf); err != nil {
			log.Printf("failed to send cancel request: %v", err)
		} else {
			fmt.Printf("-> sent cancel-all request for %s/%s\n", *owner, *ticker)
		}

	case "heartbeat":
		buf := make([]byte, wire.BaseMessageHeaderLen)
		if _, err := conn.Write(buf); err != nil {
			log.Printf("failed to send heartbeat: %v", err)
		}

	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (press Ctrl+C to exit)")
	select {}
}

func parseQuantities(input string) []int64 {
	parts := strings.Split(input, ",")
	var result []int64
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseInt(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("warning: invalid quantity %q, skipping", p)
		}
	}
	return result
}

func readReports(conn net.Conn) {
	for {
		buf := make([]byte, 4*1024)
		n, err := conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}

		report, err := wire.ParseReport(buf[:n])
		if err != nil {
			log.Printf("error parsing report: %v", err)
			continue
		}

		if report.Type == wire.ErrorReport || !report.Success {
			fmt.Printf("\n[REJECTED] order %d: %s\n", report.OrderID, report.Err)
		} else {
			fmt.Printf("\n[ACCEPTED] order %d\n", report.OrderID)
		}
	}
}
