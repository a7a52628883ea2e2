package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect and adjust analysis quotas",
}

var quotaGetCmd = &cobra.Command{
	Use:   "get <user-id>",
	Short: "Show a user's remaining analyses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := validateAndInit(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close()

		remaining, err := st.GetQuota(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "quota get")
		}
		fmt.Printf("%d\n", remaining)
		return nil
	},
}

var quotaSetCmd = &cobra.Command{
	Use:   "set <user-id> <remaining>",
	Short: "Set a user's remaining analyses",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var remaining int
		if _, err := fmt.Sscanf(args[1], "%d", &remaining); err != nil || remaining < 0 {
			return eris.Errorf("invalid quota value %q", args[1])
		}

		st, err := validateAndInit(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.SetQuota(ctx, args[0], remaining); err != nil {
			return eris.Wrap(err, "quota set")
		}
		return nil
	},
}

func init() {
	quotaCmd.AddCommand(quotaGetCmd)
	quotaCmd.AddCommand(quotaSetCmd)
	rootCmd.AddCommand(quotaCmd)
}
