package format

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FromCommand builds a Formatter from the persistent --output, --quiet and
// --no-color flags. Color also turns off when NO_COLOR is set or stdout is
// not a terminal. An unparsable --output falls back to the table mode; the
// root command rejects it before any subcommand runs.
func FromCommand(cmd *cobra.Command) Formatter {
	flags := cmd.Flags()
	mode, _ := ParseMode(lookupString(flags, "output"))
	return New(cmd.OutOrStdout(), cmd.ErrOrStderr(), Options{
		Mode:  mode,
		Quiet: lookupBool(flags, "quiet"),
		Color: colorAllowed(lookupBool(flags, "no-color")),
	})
}

func colorAllowed(disabled bool) bool {
	if disabled {
		return false
	}
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	return !color.NoColor
}

func lookupString(flags *pflag.FlagSet, name string) string {
	v, err := flags.GetString(name)
	if err != nil {
		return ""
	}
	return v
}

func lookupBool(flags *pflag.FlagSet, name string) bool {
	v, err := flags.GetBool(name)
	return err == nil && v
}
