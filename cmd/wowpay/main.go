package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/dogecoinfoundation/wowpay/pkg/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	// Load config
	var config wow.Config

	LoadConfig(&config)

	// define root command
	rootCmd := &cobra.Command{
		Use: "wowpay",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
			os.Exit(0)
		},
	}

	// Add flags for each configuration option
	rootCmd.PersistentFlags().StringVar(&config.WowPay.Network, "network", config.WowPay.Network, "Wownero network section to use")
	rootCmd.PersistentFlags().StringVar(&config.WebAPI.Port, "webapi-port", config.WebAPI.Port, "Web API port")
	rootCmd.PersistentFlags().StringVar(&config.WebAPI.Bind, "webapi-bind", config.WebAPI.Bind, "Web API bind")
	rootCmd.PersistentFlags().StringVar(&config.Store.DBFile, "store-db-file", config.Store.DBFile, "SQLite DB file")
	rootCmd.PersistentFlags().StringVar(&config.Store.Postgres, "store-postgres", config.Store.Postgres, "Postgres connection string")
	// Bind flags to config fields
	viper.BindPFlags(rootCmd.PersistentFlags())

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the WowPay server",
		Run: func(cmd *cobra.Command, args []string) {
			mustValidate(config)
			Server(config)
		},
	}

	configCmd := &cobra.Command{
		Use:   "showconf",
		Short: "Print the config state and exit",
		Run: func(cmd *cobra.Command, args []string) {
			o, _ := json.MarshalIndent(config, ">", " ")
			fmt.Println(string(o))
			os.Exit(0)
		},
	}

	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "List the wallet's accounts and balances",
		Run: func(cmd *cobra.Command, args []string) {
			rpc := walletRPC(config)
			ctx, cancel := commandContext()
			defer cancel()
			summary, err := rpc.GetAccounts(ctx)
			exitOnErr(err)
			for _, a := range summary.SubaddressAccounts {
				fmt.Printf("%d\t%s\t%s\t%s\n", a.AccountIndex, a.Label,
					wow.FormatWOW(wow.PiconeroToDecimal(a.UnlockedBalance)), a.Address)
			}
			fmt.Println("total", wow.FormatWOW(wow.PiconeroToDecimal(summary.TotalBalance)))
		},
	}

	createAccountCmd := &cobra.Command{
		Use:   "create-account <label>",
		Short: "Create a wallet account to receive invoice payments into",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rpc := walletRPC(config)
			ctx, cancel := commandContext()
			defer cancel()
			acc, err := rpc.CreateAccount(ctx, args[0])
			exitOnErr(err)
			fmt.Printf("account %d: %s\n", acc.AccountIndex, acc.Address)
		},
	}

	openWalletCmd := &cobra.Command{
		Use:   "open-wallet <name> <password>",
		Short: "Ask wownero-wallet-rpc to open a wallet from its wallet dir",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			rpc := walletRPC(config)
			ctx, cancel := commandContext()
			defer cancel()
			exitOnErr(rpc.OpenWallet(ctx, args[0], args[1]))
			fmt.Println("opened", args[0])
		},
	}

	importWalletCmd := &cobra.Command{
		Use:   "import-wallet <wallet-file> <keys-file> [password]",
		Short: "Copy a wallet into the wallet dir and open it",
		Args:  cobra.RangeArgs(2, 3),
		Run: func(cmd *cobra.Command, args []string) {
			password := ""
			if len(args) == 3 {
				password = args[2]
			}
			rpc := walletRPC(config)
			node, err := config.Node()
			exitOnErr(err)
			ctx, cancel := commandContext()
			defer cancel()
			exitOnErr(core.ImportWallet(ctx, node, rpc, core.OSPermissions{}, args[0], args[1], password))
			fmt.Println("imported", args[0])
		},
	}

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(createAccountCmd)
	rootCmd.AddCommand(openWalletCmd)
	rootCmd.AddCommand(importWalletCmd)

	// Execute the Cobra command
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
	}

}

func LoadConfig(config *wow.Config) {

	configFileName, set := os.LookupEnv("WOWPAY_ENV")
	if set {
		viper.SetConfigName(configFileName)
	} else {
		viper.SetConfigName("config")
	}

	// Set config file name and search paths
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/wowpay/")
	viper.AddConfigPath("$HOME/.wowpay")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("failed to find config file: ", err)
		os.Exit(1)
	}

	if err := viper.Unmarshal(config); err != nil {
		panic(fmt.Errorf("failed to unmarshal config: %s", err))
	}
	config.Defaults()
}

func mustValidate(config wow.Config) {
	if err := config.Validate(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func walletRPC(config wow.Config) *core.WowneroRPC {
	mustValidate(config)
	node, err := config.Node()
	exitOnErr(err)
	rpc, err := core.NewWowneroRPC(node)
	exitOnErr(err)
	return rpc
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func exitOnErr(err error) {
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
