package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for iconscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iconscan",
		Short: "Check favicon and touch icon compliance of web sites",
		Long: `iconscan checks how a web site declares its icons.

It fetches the target page, reads the icon <link> elements and verifies
each declared icon over HTTP: that it exists, that the served content type
matches the declared one and that PNG icons have the declared size.

Onion services are checked through a Tor SOCKS5 proxy (--proxy) or an
embedded Tor daemon (--tor).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
