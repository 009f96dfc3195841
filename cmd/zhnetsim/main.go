// Command zhnetsim wires a handful of zhnetwork engines together over an
// in-process shared medium and drives one broadcast and one unicast through
// them, printing every ON_SEND/ON_RECV event. It is a demo/test harness for
// the engine.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/aZholtikov/zh-network-go/memlink"
	"github.com/aZholtikov/zh-network-go/zhnetwork"
)

func main() {
	var nodeCount = pflag.IntP("nodes", "n", 3, "Number of nodes on the simulated shared medium (every node hears every other).")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - simulate a zh-network mesh over an in-process medium\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}
	if *nodeCount < 2 {
		fmt.Fprintln(os.Stderr, "need at least 2 nodes")
		os.Exit(1)
	}

	if err := run(*nodeCount); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(nodeCount int) error {
	medium := memlink.NewMedium()

	macs := make([]zhnetwork.MAC, nodeCount)
	engines := make([]*zhnetwork.Engine, nodeCount)

	for i := range macs {
		macs[i] = zhnetwork.MAC{0xAA, 0, 0, 0, 0, byte(i + 1)}
		link := medium.NewLink(macs[i])

		cfg := zhnetwork.DefaultConfig()
		cfg.MaxWaitingTime = 500 * time.Millisecond

		engine, err := zhnetwork.New(cfg, link)
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
		engines[i] = engine
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, engine := range engines {
		if err := engine.Start(ctx); err != nil {
			return fmt.Errorf("node %d: start: %w", i, err)
		}
		defer func(e *zhnetwork.Engine) { _ = e.Stop() }(engine)
		go printEvents(macs[i], engine)
	}

	fmt.Printf("node 0 (%s) broadcasting...\n", macs[0])
	if err := engines[0].Send(nil, []byte("hi")); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}

	time.Sleep(200 * time.Millisecond)

	last := len(macs) - 1
	fmt.Printf("node 0 (%s) unicasting to node %d (%s)...\n", macs[0], last, macs[last])
	if err := engines[0].Send(&macs[last], []byte("x")); err != nil {
		return fmt.Errorf("unicast: %w", err)
	}

	time.Sleep(2 * time.Second)
	return nil
}

func printEvents(self zhnetwork.MAC, engine *zhnetwork.Engine) {
	for ev := range engine.Events() {
		switch e := ev.(type) {
		case zhnetwork.RecvEvent:
			fmt.Printf("[%s] ON_RECV from=%s payload=%q\n", self, e.MAC, e.Payload)
		case zhnetwork.SendEvent:
			fmt.Printf("[%s] ON_SEND to=%s status=%s\n", self, e.MAC, e.Status)
		}
	}
}
