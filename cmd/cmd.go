package cmd

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "smartpay",
	Short: "share trip expenses with your group",
	Long:  `smartpay keeps a shared ledger for trip groups: record who paid, split the cost among members and settle up afterwards`,
}

func init() {
	RootCmd.AddCommand(serverCommand())
	RootCmd.AddCommand(migrateCommand())
	RootCmd.AddCommand(settleCmd())
}
