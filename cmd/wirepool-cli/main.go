// Package main provides the entry point for wirepool-cli.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/wirepool/wirepool-go/internal/server/httpserver/handler"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app creates the CLI application.
func app() *cli.App {
	return &cli.App{
		Name:    "wirepool-cli",
		Usage:   "WirePool session broker client",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Broker address (e.g., localhost:7080)",
				EnvVars: []string{"WIREPOOL_SERVER"},
				Value:   "localhost:7080",
			},
			&cli.StringFlag{
				Name:    "client-id",
				Aliases: []string{"c"},
				Usage:   "Client identity",
				EnvVars: []string{"WIREPOOL_CLIENT_ID"},
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format: table, json",
				Value:   "table",
			},
		},
		Commands: []*cli.Command{
			connectCommand(),
			disconnectCommand(),
			statusCommand(),
			nodesCommand(),
		},
	}
}

// client builds the API client from global flags.
func client(c *cli.Context) (*apiClient, error) {
	clientID := c.String("client-id")
	if clientID == "" {
		return nil, fmt.Errorf("client identity is required (--client-id or WIREPOOL_CLIENT_ID)")
	}
	return newAPIClient(c.String("server"), clientID), nil
}

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Establish a session and print the tunnel config",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "node",
				Usage: "Pin a specific node ID",
			},
			&cli.StringFlag{
				Name:  "region",
				Usage: "Preferred region",
			},
			&cli.StringFlag{
				Name:  "tier",
				Usage: "Client tier (free, premium)",
				Value: "free",
			},
			&cli.StringFlag{
				Name:    "config-out",
				Aliases: []string{"f"},
				Usage:   "Write the tunnel config to a file instead of stdout",
			},
		},
		Action: func(c *cli.Context) error {
			api, err := client(c)
			if err != nil {
				return err
			}

			var resp handler.ConnectResponse
			err = api.do(c.Context, "POST", "/v1/connect", handler.ConnectRequest{
				NodeID: c.String("node"),
				Region: c.String("region"),
				Tier:   c.String("tier"),
			}, &resp)
			if err != nil {
				return err
			}

			if c.String("output") == "json" {
				return printJSON(resp)
			}

			fmt.Printf("session %s on %s (%s): %s\n",
				resp.Session.ID, resp.Node.Name, resp.Node.Region, resp.Session.State)

			if out := c.String("config-out"); out != "" {
				if err := os.WriteFile(out, []byte(resp.Config), 0o600); err != nil {
					return err
				}
				fmt.Printf("tunnel config written to %s\n", out)
				return nil
			}

			fmt.Println()
			fmt.Print(resp.Config)
			return nil
		},
	}
}

func disconnectCommand() *cli.Command {
	return &cli.Command{
		Name:      "disconnect",
		Usage:     "End a session",
		ArgsUsage: "SESSION_ID",
		Action: func(c *cli.Context) error {
			sessionID := c.Args().First()
			if sessionID == "" {
				return fmt.Errorf("SESSION_ID is required")
			}

			api, err := client(c)
			if err != nil {
				return err
			}

			var resp handler.DisconnectResponse
			err = api.do(c.Context, "POST", "/v1/sessions/"+sessionID+"/disconnect", nil, &resp)
			if err != nil {
				return err
			}

			if c.String("output") == "json" {
				return printJSON(resp)
			}

			fmt.Printf("session %s ended after %s (up %d bytes, down %d bytes)\n",
				resp.Session.ID,
				(time.Duration(resp.DurationSeconds * float64(time.Second))).Round(time.Second),
				resp.BytesUp, resp.BytesDown)
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the current session",
		Action: func(c *cli.Context) error {
			api, err := client(c)
			if err != nil {
				return err
			}

			var resp handler.SessionResponse
			if err := api.do(c.Context, "GET", "/v1/status", nil, &resp); err != nil {
				return err
			}

			if c.String("output") == "json" {
				return printJSON(resp)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "SESSION\t%s\n", resp.ID)
			fmt.Fprintf(w, "NODE\t%s\n", resp.NodeID)
			fmt.Fprintf(w, "STATE\t%s\n", resp.State)
			fmt.Fprintf(w, "STARTED\t%s\n", resp.StartedAt.Format(time.RFC3339))
			fmt.Fprintf(w, "UP/DOWN\t%d / %d bytes\n", resp.BytesUp, resp.BytesDown)
			if resp.PingMS > 0 {
				fmt.Fprintf(w, "PING\t%d ms\n", resp.PingMS)
			}
			return w.Flush()
		},
	}
}

func nodesCommand() *cli.Command {
	return &cli.Command{
		Name:  "nodes",
		Usage: "List available nodes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "region",
				Usage: "Filter by region",
			},
			&cli.BoolFlag{
				Name:  "premium",
				Usage: "Premium nodes only",
			},
		},
		Action: func(c *cli.Context) error {
			api, err := client(c)
			if err != nil {
				return err
			}

			path := "/v1/nodes"
			query := ""
			if region := c.String("region"); region != "" {
				query = "?region=" + region
			}
			if c.Bool("premium") {
				if query == "" {
					query = "?premium=true"
				} else {
					query += "&premium=true"
				}
			}

			var resp handler.ListNodesResponse
			if err := api.do(c.Context, "GET", path+query, nil, &resp); err != nil {
				return err
			}

			if c.String("output") == "json" {
				return printJSON(resp)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tREGION\tHEALTH\tOCCUPANCY\tLOAD\tPING\tSCORE")
			for _, n := range resp.Nodes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%dms\t%.1f\n",
					n.ID, n.Name, n.Region, n.HealthState,
					n.Occupancy, n.Capacity, n.Load, n.PingMS, n.Score)
			}
			return w.Flush()
		},
	}
}

// printJSON writes a value as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
