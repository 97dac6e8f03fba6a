package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vaultsandbox/peermail/internal/record"
)

func newFileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Store and retrieve local attachment files",
	}

	cmd.AddCommand(newFilePutCmd())
	cmd.AddCommand(newFileGetCmd())
	cmd.AddCommand(newFileListCmd())
	return cmd
}

func newFilePutCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "put <path>",
		Short: "Store a file and print its manifest id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := storeFile(cmd, s, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newFileGetCmd() *cobra.Command {
	var (
		configPath string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "get <manifest-id>",
		Short: "Reassemble a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := record.ParseID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd, configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			data, err := s.agent.ReadFile(cmd.Context(), id)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(output, data, 0600)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this path instead of stdout")
	return cmd
}

func newFileListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored files",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			files, err := s.agent.AllManifests(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No files stored.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSIZE\tTYPE\tNAME")
			for _, f := range files {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", f.ID, f.Manifest.Size, f.Manifest.Filetype, f.Manifest.Filename)
			}
			return w.Flush()
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
