package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/catalogcrawler/internal/config"
	"github.com/nao1215/catalogcrawler/internal/inventory"
	"github.com/nao1215/catalogcrawler/internal/model"
	"github.com/nao1215/catalogcrawler/internal/transport"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that proxies accept SOCKS5 connections",
		Long: `Check performs a SOCKS5 handshake with every proxy in the proxy table,
or with a single proxy given by --proxy-id, and prints the result.

Examples:
  # Check every proxy
  catalogcrawler check

  # Check one proxy from another table
  catalogcrawler check --proxies my/proxies.csv --proxy-id p2`,
		Args: cobra.NoArgs,
		RunE: runCheckCmd,
	}

	cmd.Flags().String("proxies", config.DefaultProxiesFile, "Proxy table")
	cmd.Flags().String("proxy-id", "", "Check only this proxy")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Handshake timeout")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString("proxies")
	if err != nil {
		return err
	}
	proxyID, err := cmd.Flags().GetString("proxy-id")
	if err != nil {
		return err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}

	proxies, err := inventory.LoadProxies(path)
	if err != nil {
		return err
	}
	if proxyID != "" {
		p, ok := inventory.FindProxy(proxies, proxyID)
		if !ok {
			return config.Errorf("unknown proxy id: %s", proxyID)
		}
		proxies = []model.ProxyEndpoint{p}
	}

	failed := checkProxies(cmd.Context(), cmd.OutOrStdout(), proxies, timeout)
	if failed > 0 {
		return fmt.Errorf("%d of %d proxies failed the check", failed, len(proxies))
	}
	return nil
}

// checkProxies checks every proxy concurrently and prints one line per
// proxy in table order. It returns the number of failures.
func checkProxies(ctx context.Context, out io.Writer, proxies []model.ProxyEndpoint, timeout time.Duration) int {
	statuses := make([]transport.ProxyStatus, len(proxies))

	var g errgroup.Group
	for i, p := range proxies {
		g.Go(func() error {
			client, err := transport.NewClient(p, timeout)
			if err != nil {
				statuses[i] = transport.ProxyStatusCannotConnect
				return nil
			}
			statuses[i] = client.CheckConnection(ctx)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	failed := 0
	for i, p := range proxies {
		mark := "OK  "
		if statuses[i] != transport.ProxyStatusOK {
			mark = "FAIL"
			failed++
		}
		fmt.Fprintf(out, "%s %-12s %-22s %s\n", mark, p.ID, p.SOCKSAddress(), statuses[i])
	}
	return failed
}
