package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/coding-eval/internal/model"
)

var settingKeys = []string{model.SettingModel, model.SettingActivePrompt}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and write session settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show one setting, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 1 {
			v, ok := env.Settings.Get(args[0])
			if !ok {
				return eris.Errorf("settings get: %s is not set", args[0])
			}
			_, _ = fmt.Fprintln(os.Stdout, v)
			return nil
		}

		all := env.Settings.All()
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(os.Stdout, "%s=%s\n", k, all[k])
		}
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set model or active_prompt",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if !validSettingKey(key) {
			return eris.Errorf("settings set: unknown key %q (want one of %v)", key, settingKeys)
		}

		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		if key == model.SettingActivePrompt {
			if _, err := env.Library.Resolve(value); err != nil {
				return err
			}
		}
		synced := env.Settings.Put(cmd.Context(), key, value)
		_, _ = fmt.Fprintf(os.Stdout, "%s %s=%s (%s)\n", successText("set"), key, value, syncLabel(synced))
		printSyncWarning(os.Stderr, synced)
		return nil
	},
}

func validSettingKey(key string) bool {
	for _, k := range settingKeys {
		if k == key {
			return true
		}
	}
	return false
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
