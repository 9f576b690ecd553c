/*
Package flags binds command-line flags onto configuration keys.

A flag given on the command line overrides the environment and .env file;
an absent flag leaves the key to the other sources.
*/
package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/shortlink-org/bank-saga/config"
)

// Flag is a string flag that overrides Key.
type Flag struct {
	Name  string
	Key   string
	Usage string
}

// Add registers fs as persistent flags of cmd.
func Add(cmd *cobra.Command, fs ...Flag) {
	for _, f := range fs {
		cmd.PersistentFlags().String(f.Name, "", f.Usage+" ("+f.Key+")")
	}
}

// Apply copies every flag set on the command line into cfg. Flags not in fs
// are ignored.
func Apply(cmd *cobra.Command, cfg *config.Config, fs ...Flag) {
	keys := make(map[string]string, len(fs))
	for _, f := range fs {
		keys[f.Name] = f.Key
	}

	cmd.Flags().Visit(func(pf *pflag.Flag) {
		if key, ok := keys[pf.Name]; ok {
			cfg.Set(key, pf.Value.String())
		}
	})
}
