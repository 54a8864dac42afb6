package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/unchained-capital/connect/internal/core/domain"
)

var (
	snapshotPath string

	accountDiscoverCmd = &cobra.Command{
		Use:   "discover <xpub>",
		Short: "discover account addresses and history",
		Long: "this command derives the addresses of the given extended public " +
			"key and scans the chain for their transaction history until the " +
			"unused-address gap limit is reached. Interrupt with ctrl-c to abort",
		Args: cobra.ExactArgs(1),
		RunE: accountDiscover,
	}
	accountMonitorCmd = &cobra.Command{
		Use:   "monitor <xpub>",
		Short: "monitor account activity",
		Long: "this command streams live balance and activity updates for an " +
			"already discovered account. Interrupt with ctrl-c to stop",
		Args: cobra.ExactArgs(1),
		RunE: accountMonitor,
	}
	accountCmd = &cobra.Command{
		Use:   "account",
		Short: "discover accounts and monitor their activity",
		Long: "this command lets you discover all addresses and transaction " +
			"history belonging to an extended public key, and stream live " +
			"updates for an already discovered account",
	}
)

func init() {
	accountDiscoverCmd.Flags().StringVarP(
		&snapshotPath, "snapshot", "s", "",
		"path to a snapshot file of a previous discovery to resume from",
	)
	accountMonitorCmd.Flags().StringVarP(
		&snapshotPath, "snapshot", "s", "",
		"path to the snapshot file of the account to monitor",
	)

	accountCmd.AddCommand(accountDiscoverCmd, accountMonitorCmd)
}

func accountDiscover(cmd *cobra.Command, args []string) error {
	xpub := args[0]

	svc, cleanup, err := getCoordinator()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if err := svc.LoadCoinInfo(ctx, nil); err != nil {
		return err
	}

	prior, err := readSnapshot()
	if err != nil {
		return err
	}

	var cancelDiscovery func(reason error)
	chSignal := make(chan os.Signal, 1)
	signal.Notify(chSignal, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-chSignal
		if cancelDiscovery != nil {
			cancelDiscovery(fmt.Errorf("interrupted by user"))
		}
	}()

	snapshot, err := svc.LoadAccountInfo(
		ctx, xpub, prior,
		func(ev domain.DiscoveryProgress) {
			branch := "external"
			if ev.Change {
				branch = "internal"
			}
			fmt.Printf(
				"scanned %s batch %d: %d addresses, %d new txs\n",
				branch, ev.Batch, ev.AddressesScanned, ev.TxsFound,
			)
		},
		func(cancel func(reason error)) { cancelDiscovery = cancel },
	)
	if err != nil {
		return err
	}

	printRespJSON(snapshot)
	return nil
}

func accountMonitor(cmd *cobra.Command, args []string) error {
	xpub := args[0]

	svc, cleanup, err := getCoordinator()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if err := svc.LoadCoinInfo(ctx, nil); err != nil {
		return err
	}

	snapshot, err := readSnapshot()
	if err != nil {
		return err
	}

	stream, err := svc.MonitorAccountActivity(ctx, xpub, snapshot)
	if err != nil {
		return err
	}
	defer stream.Dispose()

	chSignal := make(chan os.Signal, 1)
	signal.Notify(chSignal, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-chSignal:
			return nil
		case update, ok := <-stream.Updates():
			if !ok {
				return nil
			}
			if update.Err != nil {
				fmt.Fprintf(os.Stderr, "stream error: %s\n", update.Err)
				continue
			}
			printRespJSON(update.Snapshot)
		}
	}
}

func readSnapshot() (*domain.AccountSnapshot, error) {
	if snapshotPath == "" {
		return nil, nil
	}
	buf, err := os.ReadFile(snapshotPath)
	if err != nil {
		return nil, err
	}
	snapshot := &domain.AccountSnapshot{}
	if err := json.Unmarshal(buf, snapshot); err != nil {
		return nil, fmt.Errorf("invalid snapshot file: %s", err)
	}
	return snapshot, nil
}
