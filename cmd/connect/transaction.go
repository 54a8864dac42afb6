package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	coinInfoCmd = &cobra.Command{
		Use:   "info",
		Short: "show backend coin info",
		Long: "this command resolves and shows the network served by the " +
			"connected backend along with the current chain height",
		RunE: coinInfo,
	}
	txFetchCmd = &cobra.Command{
		Use:   "fetch <txid>...",
		Short: "fetch one or more transactions by id",
		Args:  cobra.MinimumNArgs(1),
		RunE:  txFetch,
	}
	txBroadcastCmd = &cobra.Command{
		Use:   "broadcast <tx hex>",
		Short: "broadcast a signed transaction",
		Args:  cobra.ExactArgs(1),
		RunE:  txBroadcast,
	}
	txCmd = &cobra.Command{
		Use:   "tx",
		Short: "fetch or broadcast transactions",
		Long: "this command lets you fetch transactions by id or broadcast " +
			"signed ones over the network",
	}
)

func init() {
	txCmd.AddCommand(txFetchCmd, txBroadcastCmd)
}

func coinInfo(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := getCoordinator()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if err := svc.LoadCoinInfo(ctx, nil); err != nil {
		return err
	}

	height, err := svc.LoadCurrentHeight(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("chain height: %d\n", height)
	return nil
}

func txFetch(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := getCoordinator()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if err := svc.LoadCoinInfo(ctx, nil); err != nil {
		return err
	}

	txs, err := svc.LoadTransactions(ctx, args)
	if err != nil {
		return err
	}

	for _, tx := range txs {
		fmt.Printf("%s: %s\n", tx.TxID, hex.EncodeToString(tx.RawTx))
	}
	return nil
}

func txBroadcast(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := getCoordinator()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if err := svc.LoadCoinInfo(ctx, nil); err != nil {
		return err
	}

	txid, err := svc.SendTransactionHex(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println(txid)
	return nil
}
