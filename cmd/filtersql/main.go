// Command filtersql compiles metadata filter predicates to SQL, and can run
// them against a PostgreSQL metadata store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mdstore/filtersql"
	"github.com/mdstore/filtersql/query"
	"github.com/mdstore/filtersql/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "filtersql",
		Short:         "Compile metadata filter predicates to SQL",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCompileCmd(), newQueryCmd())
	return root
}

func newCompileCmd() *cobra.Command {
	var kindName string
	cmd := &cobra.Command{
		Use:   "compile <filter>",
		Short: "Print the FROM and WHERE clauses a filter compiles to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := query.ParseNodeKind(kindName)
			if err != nil {
				return err
			}
			from, where, err := filtersql.Compile(kind, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "SELECT DISTINCT %s.id FROM %sWHERE %s\n", kind.Table(), from, where)
			return nil
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", "artifact", "node kind to filter: artifact, execution or context")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var kindName, dsn string
	cmd := &cobra.Command{
		Use:   "query <filter>",
		Short: "Run a filter against a metadata store and print matching nodes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := query.ParseNodeKind(kindName)
			if err != nil {
				return err
			}
			filter := ""
			if len(args) > 0 {
				filter = args[0]
			}
			ctx := cmd.Context()
			s, err := store.New(ctx, dsn)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			switch kind {
			case query.Artifact:
				artifacts, err := s.ListArtifacts(ctx, filter)
				if err != nil {
					return err
				}
				for _, a := range artifacts {
					fmt.Fprintf(out, "%d\t%s\t%s\n", a.ID, deref(a.Name), deref(a.URI))
				}
			case query.Execution:
				executions, err := s.ListExecutions(ctx, filter)
				if err != nil {
					return err
				}
				for _, e := range executions {
					fmt.Fprintf(out, "%d\t%s\t%s\n", e.ID, deref(e.Name), deref(e.LastKnownState))
				}
			case query.Context:
				contexts, err := s.ListContexts(ctx, filter)
				if err != nil {
					return err
				}
				for _, c := range contexts {
					fmt.Fprintf(out, "%d\t%s\n", c.ID, deref(c.Name))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", "artifact", "node kind to list: artifact, execution or context")
	cmd.Flags().StringVar(&dsn, "dsn", "postgres://localhost:5432/metadata", "PostgreSQL connection string")
	return cmd
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
