// Command krpcconsole is an interactive driver for package krpc: every
// line typed at the prompt is parsed into one request, submitted to a
// single in-process client, and run through exactly one Engine.Tick, so
// the cooperative scheduler, budget accounting, and suspension machinery
// can be observed call by call.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dhropo/krpc"
)

var (
	flagMaxTimePerUpdate time.Duration
	flagOneRPCPerUpdate  bool
	flagBlockingRecv     time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "krpcconsole",
	Short: "Interactively drive a krpc.Engine one request at a time",
	Long: `
krpcconsole starts a single simulated client and a demo service registry,
then gives you a prompt. Each line is one request, of the form:

    service.procedure [arg ...]

Arguments that parse as numbers are sent as numbers; everything else is
sent as a string. Built-in procedures: echo.Echo, counter.Increment,
counter.Current, wait.Ticks. Type "stats" to print the statistics
snapshot, or "exit" to quit.`,
	RunE: runConsole,
}

func init() {
	flags := rootCmd.Flags()
	flags.DurationVar(&flagMaxTimePerUpdate, "max-time-per-update", 10*time.Millisecond, "per-tick execution budget")
	flags.BoolVar(&flagOneRPCPerUpdate, "one-rpc-per-update", false, "execute at most one request per tick")
	flags.DurationVar(&flagBlockingRecv, "recv-timeout", 0, "poll-phase timeout when > 0 enables blocking receive")
}

func runConsole(cmd *cobra.Command, args []string) error {
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithTimeField("")),
		stumpy.L.WithLevel(logiface.LevelInformational),
	)

	registry := newDemoRegistry()
	client := newDemoClient("console")
	transport := newDemoTransport(client)

	clockStart := time.Now()
	now := func() float64 { return time.Since(clockStart).Seconds() }

	opts := []krpc.Option[*stumpy.Event]{
		krpc.WithMaxTimePerUpdate[*stumpy.Event](flagMaxTimePerUpdate),
		krpc.WithOneRPCPerUpdate[*stumpy.Event](flagOneRPCPerUpdate),
	}
	if flagBlockingRecv > 0 {
		opts = append(opts, krpc.WithBlockingRecv[*stumpy.Event](flagBlockingRecv))
	}

	engine := krpc.NewEngine[*stumpy.Event](registry, now, logger, opts...)
	engine.AttachTransport(transport)

	ctx := context.Background()

	fmt.Println("krpcconsole ready; one request per line, \"stats\" for a snapshot, \"exit\" to quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("krpc> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "stats":
			printStats(engine.Stats())
			continue
		}

		req, err := parseRequest(line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}

		client.submit(req)
		engine.Tick(ctx, nil)
	}

	return scanner.Err()
}

// parseRequest splits "service.procedure arg..." into a krpc.Request,
// coercing each argument to a number when it parses as one.
func parseRequest(line string) (krpc.Request, error) {
	fields := strings.Fields(line)
	dotted := fields[0]
	idx := strings.LastIndexByte(dotted, '.')
	if idx < 0 {
		return krpc.Request{}, fmt.Errorf("expected service.procedure, got %q", dotted)
	}

	req := krpc.Request{Service: dotted[:idx], Procedure: dotted[idx+1:]}
	for _, arg := range fields[1:] {
		if f, err := strconv.ParseFloat(arg, 64); err == nil {
			req.Args = append(req.Args, structpb.NewNumberValue(f))
			continue
		}
		req.Args = append(req.Args, structpb.NewStringValue(arg))
	}
	return req, nil
}

func printStats(s krpc.Stats) {
	fmt.Printf(
		"rpc/s=%.2f stream/s=%.2f tick=%s poll=%s exec=%s maxTimePerUpdate=%s executed=%d streamExecuted=%d\n",
		s.RPCRate, s.StreamRPCRate, s.TimePerTick, s.PollTimePerTick, s.ExecTimePerTick,
		s.MaxTimePerUpdate, s.RPCsExecuted, s.StreamRPCsExecuted,
	)
}
