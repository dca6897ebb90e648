package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkordes/geopulse-companion/internal/storage"
	"github.com/pkordes/geopulse-companion/internal/style"
)

var storageCmd = &cobra.Command{
	Use:     "storage",
	GroupID: GroupLocal,
	Short:   "Inspect the local key-value storage",
	Long: `Inspect the key-value storage the session and preferences live in.

Known keys:
  userInfo              profile snapshot
  geopulseCredentials   session cookies
  themeMode             theme preference

Examples:
  geopulse storage list
  geopulse storage get themeMode
  geopulse storage remove userInfo`,
	RunE: requireSubcommand,
}

var storageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored keys",
	Args:  cobra.NoArgs,
	RunE:  runStorageList,
}

var storageGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value stored under key",
	Args:  cobra.ExactArgs(1),
	RunE:  runStorageGet,
}

var storageRemoveCmd = &cobra.Command{
	Use:   "remove <key>",
	Short: "Delete the value stored under key",
	Args:  cobra.ExactArgs(1),
	RunE:  runStorageRemove,
}

func init() {
	storageCmd.AddCommand(storageListCmd)
	storageCmd.AddCommand(storageGetCmd)
	storageCmd.AddCommand(storageRemoveCmd)
	rootCmd.AddCommand(storageCmd)
}

func runStorageList(cmd *cobra.Command, args []string) error {
	lister, ok := current.KV.(storage.Lister)
	if !ok {
		return fmt.Errorf("the %s storage driver cannot list keys", current.Config.StorageDriver)
	}
	keys, err := lister.Keys(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing keys: %w", err)
	}
	if jsonOutput {
		if keys == nil {
			keys = []string{}
		}
		return printJSON(cmd, keys)
	}
	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		fmt.Fprintln(out, style.Dim.Render("Storage is empty."))
		return nil
	}
	for _, k := range keys {
		fmt.Fprintln(out, k)
	}
	return nil
}

func runStorageGet(cmd *cobra.Command, args []string) error {
	v, ok, err := current.KV.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	if !ok {
		return fmt.Errorf("no value stored under %q", args[0])
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
	return err
}

func runStorageRemove(cmd *cobra.Command, args []string) error {
	if err := current.KV.Remove(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("removing %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s\n", style.SuccessPrefix, args[0])
	return nil
}
