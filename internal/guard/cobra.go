package guard

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Require returns a cobra PreRunE that refuses to run the command unless
// the guard allows route. Denials are printed to stderr and returned as
// coded errors so the exit status reflects them.
func Require(g func() *Guard, route string, req Requirements) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		d := g().Check(route, req)
		if d.Allowed() {
			return nil
		}
		if d.State == StateDeniedForbidden {
			for _, line := range d.Lines() {
				fmt.Fprintln(cmd.ErrOrStderr(), line)
			}
		}
		return d.Err()
	}
}
