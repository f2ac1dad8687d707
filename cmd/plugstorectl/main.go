// Command plugstorectl drives a plugstore server's admin API.
//
// Usage:
//
//	plugstorectl [-server URL] nodeid -origin O [-top T] [-mode persistent|private]
//	plugstorectl names <node-id>
//	plugstorectl clear
//	plugstorectl forget <pattern>
//	plugstorectl end-private
//	plugstorectl usage
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/client"
	"github.com/bytedance/sonic"
)

func main() {
	server := flag.String("server", envOr("PLUGSTORE_URL", "http://127.0.0.1:8070"), "Server base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall command timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(*server, client.DefaultOptions())
	if err := run(ctx, c, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, cmd string, args []string) error {
	switch cmd {
	case "nodeid":
		fs := flag.NewFlagSet("nodeid", flag.ExitOnError)
		origin := fs.String("origin", "", "Origin of the plugin's frame")
		top := fs.String("top", "", "Top-level origin (defaults to -origin)")
		mode := fs.String("mode", "persistent", "persistent or private")
		_ = fs.Parse(args)
		if *top == "" {
			*top = *origin
		}
		id, err := c.NodeID(ctx, *origin, *top, *mode)
		if err != nil {
			return err
		}
		fmt.Println(id)

	case "names":
		if len(args) != 1 {
			return fmt.Errorf("names takes a node id")
		}
		names, err := c.Names(ctx, args[0])
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}

	case "clear":
		if err := c.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Println("storage cleared")

	case "forget":
		if len(args) != 1 {
			return fmt.Errorf("forget takes a site pattern")
		}
		n, err := c.Forget(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("forgot %d origin pair(s)\n", n)

	case "end-private":
		if err := c.EndPrivateSession(ctx); err != nil {
			return err
		}
		fmt.Println("private session ended")

	case "usage":
		u, err := c.Usage(ctx)
		if err != nil {
			return err
		}
		out, err := sonic.ConfigStd.MarshalIndent(u, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: plugstorectl [-server URL] <command> [args]

commands:
  nodeid -origin O [-top T] [-mode persistent|private]
  names <node-id>
  clear
  forget <pattern>
  end-private
  usage
`)
	flag.PrintDefaults()
}
