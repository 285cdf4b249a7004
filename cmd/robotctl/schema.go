package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danmuck/robolink/internal/protocol/schema"
)

func schemaCmd() *cobra.Command {
	var encoded bool
	cmd := &cobra.Command{
		Use:   "schema <file|->",
		Short: "Parse a protocol schema and list its protocols",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			var reg *schema.Registry
			if encoded {
				reg, err = schema.Load(strings.TrimSpace(string(data)))
			} else {
				reg, err = schema.Parse(string(data))
			}
			if err != nil {
				return err
			}
			printProtocols(cmd.OutOrStdout(), reg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&encoded, "base64", false, "Input is base64 encoded, as returned by login")
	return cmd
}

func printProtocols(w io.Writer, reg *schema.Registry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tNAME\tREQUEST\tRESPONSE")
	for _, p := range reg.Protocols() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.Tag, p.Name, describeFields(p.Request), describeFields(p.Response))
	}
	_ = tw.Flush()
}

func describeFields(fields []schema.Field) string {
	if len(fields) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Name+":"+f.Kind.String())
	}
	return strings.Join(parts, " ")
}
