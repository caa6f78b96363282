// Package main provides an OSC client for exercising a running service.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/hypebeast/go-osc/osc"
	"github.com/joho/godotenv"
)

var (
	app       = kingpin.New("raveforest-oscctl", "raveforest OSC client for testing")
	target    = app.Flag("target", "OSC address of the service").Default("127.0.0.1:4560").Envar("OSC_TARGET").String()
	statusURL = app.Flag("http", "Status API base URL").Default("http://localhost:8080").Envar("STATUS_URL").String()
	startAddr = app.Flag("start-address", "OSC address of start messages").Default("/start").String()
	stopAddr  = app.Flag("stop-address", "OSC address of stop messages").Default("/stop").String()

	// start command
	startCmd  = app.Command("start", "Send a start message")
	startName = startCmd.Arg("name", "Sample name").Required().String()

	// stop command
	stopCmd  = app.Command("stop", "Send a stop message")
	stopName = stopCmd.Arg("name", "Sample name").Required().String()

	// demo command
	demoCmd    = app.Command("demo", "Start two samples, hold them, then stop them")
	demoFirst  = demoCmd.Arg("first", "First sample").Default("s1_birds").String()
	demoSecond = demoCmd.Arg("second", "Second sample").Default("s2_urban").String()
	demoGap    = demoCmd.Flag("gap", "Delay between messages").Default("1s").Duration()
	demoHold   = demoCmd.Flag("hold", "How long both samples play").Default("10s").Duration()

	// status command
	statusCmd = app.Command("status", "Print the service status")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client, err := newClient(*target)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch command {
	case startCmd.FullCommand():
		send(client, *startAddr, *startName)
	case stopCmd.FullCommand():
		send(client, *stopAddr, *stopName)
	case demoCmd.FullCommand():
		demo(ctx, client)
	case statusCmd.FullCommand():
		printStatus(ctx)
	}
}

func newClient(addr string) (*osc.Client, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid target port %q: %w", portStr, err)
	}
	return osc.NewClient(host, port), nil
}

func send(client *osc.Client, addr, name string) {
	if err := client.Send(osc.NewMessage(addr, name)); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s %s -> %s\n", addr, name, *target)
}

// demo starts first and second, holds both, then stops them one after
// the other. The second start of each sample checks that a playing
// sample is not restarted.
func demo(ctx context.Context, client *osc.Client) {
	steps := []struct {
		addr  string
		name  string
		delay time.Duration
	}{
		{*startAddr, *demoFirst, *demoGap},
		{*startAddr, *demoSecond, *demoGap},
		{*startAddr, *demoFirst, *demoHold},
		{*stopAddr, *demoFirst, *demoGap},
		{*stopAddr, *demoSecond, 0},
	}

	for _, step := range steps {
		send(client, step.addr, step.name)
		if step.delay == 0 {
			continue
		}
		select {
		case <-ctx.Done():
			fmt.Println("Interrupted")
			return
		case <-time.After(step.delay):
		}
	}
}

func printStatus(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *statusURL+"/status", nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Error: %s: %s\n", resp.Status, body)
		os.Exit(1)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(out.String())
}
