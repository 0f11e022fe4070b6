package main

/*
*	CLI to exercise the RPC layer over an in-process loopback connection.
 */

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/op/go-logging"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	deepstream "github.com/aduycuong/deepstream-client-go"
	"github.com/aduycuong/deepstream-client-go/rpc"
)

func PrintFatal(msg string, args ...interface{}) {
	os.Stderr.WriteString(fmt.Sprintf(msg, args...) + "\n")
	os.Exit(1)
}

func newLoopback(log *logging.Logger) (caller *rpc.Handler, provider *rpc.Handler) {
	a, b := deepstream.Pipe()
	caller = rpc.NewHandler(a, nil, log)
	provider = rpc.NewHandler(b, nil, log)
	a.OnMessage(caller.Handle)
	b.OnMessage(provider.Handle)
	return
}

func demoCommand(c *cli.Context) (err error) {
	log := deepstream.SetupLogging("dsctl", logging.NOTICE)
	caller, provider := newLoopback(log)
	defer caller.Stop()
	defer provider.Stop()

	err = provider.Provide("sum", func(data interface{}, response *rpc.Response) {
		args := data.(map[string]float64)
		response.Accept()
		response.Send(args["a"] + args["b"])
	})
	if err != nil {
		PrintFatal(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := caller.Call(ctx, "sum", map[string]float64{"a": 1, "b": 2})
	if err != nil {
		PrintFatal(deepstream.Red("sum failed: " + err.Error()))
	}
	fmt.Println(deepstream.Green(fmt.Sprintf("sum(1, 2) = %v", result)))
	return
}

func benchCommand(c *cli.Context) (err error) {
	log := deepstream.SetupLogging("dsctl", logging.NOTICE)
	caller, provider := newLoopback(log)
	defer caller.Stop()
	defer provider.Stop()

	err = provider.Provide("echo", func(data interface{}, response *rpc.Response) {
		response.Send(data)
	})
	if err != nil {
		PrintFatal(err.Error())
	}

	n := c.Int("n")
	if n <= 0 {
		n = 64
	}
	start := time.Now()
	var group errgroup.Group
	for i := 0; i < n; i++ {
		payload := fmt.Sprintf("message-%d", i)
		group.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			result, callErr := caller.Call(ctx, "echo", payload)
			if callErr != nil {
				return callErr
			}
			if result != payload {
				return fmt.Errorf("echo mismatch: sent %q, got %v", payload, result)
			}
			return nil
		})
	}
	if err = group.Wait(); err != nil {
		PrintFatal(deepstream.Red("bench failed: " + err.Error()))
	}
	elapsed := time.Since(start)
	fmt.Println(deepstream.Green(fmt.Sprintf("%d loopback calls in %s (%s/call)", n, elapsed, elapsed/time.Duration(n))))
	return
}

func versionCommand(c *cli.Context) (err error) {
	fmt.Println("client:", deepstream.CurrentVersion)
	fmt.Println("protocol:", deepstream.ProtocolVersion)
	return
}

func main() {
	app := cli.NewApp()
	app.Name = "dsctl"
	app.Usage = "exercise the RPC layer over a loopback connection"
	app.Version = deepstream.CurrentVersion.String()
	app.Commands = []cli.Command{
		cli.Command{
			Name:   "demo",
			Usage:  "register a sum provider and invoke it",
			Action: demoCommand,
		},
		cli.Command{
			Name:  "bench",
			Usage: "fan out concurrent echo calls",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "n", Usage: "number of calls"},
			},
			Action: benchCommand,
		},
		cli.Command{
			Name:   "version",
			Action: versionCommand,
		},
	}
	app.Run(os.Args)
}
