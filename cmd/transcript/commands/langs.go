package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ieee0824/whisper-go/vocab"
)

var langsCmd = &cobra.Command{
	Use:   "langs",
	Short: "List supported languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for id := 0; id <= vocab.LangMaxID(); id++ {
			code, _ := vocab.LangStr(id)
			name, _ := vocab.LangName(id)
			fmt.Fprintf(out, "%3d  %-4s %s\n", id, code, name)
		}
		return nil
	},
}
