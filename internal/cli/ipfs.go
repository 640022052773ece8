package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chainpkg/chainpkg/internal/platform"
	"github.com/chainpkg/chainpkg/internal/storage"
)

func newIPFSCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ipfs",
		Aliases: []string{"storage"},
		Short:   "Work with content storage directly",
	}
	cmd.AddCommand(newIPFSUploadCmd(g), newIPFSDownloadCmd(g), newIPFSTestCmd(g))
	return cmd
}

func openStorage(g *globals) (*storage.Client, error) {
	a, err := g.open()
	if err != nil {
		return nil, err
	}
	return a.Storage()
}

func newIPFSUploadCmd(g *globals) *cobra.Command {
	var metadata map[string]string
	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file or directory",
		Long: `Upload a file, or a directory as a compressed archive, and print its
content address. --metadata attaches key=value pairs to the pin where
the provider supports it.`,
		Args: exactArgs(1, "a file or directory"),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage(g)
			if err != nil {
				return err
			}
			path := args[0]
			var res *storage.UploadResult
			if platform.IsDir(path) {
				res, err = store.UploadDirectory(cmd.Context(), path, storage.PinMetadata{
					Name:      filepath.Base(filepath.Clean(path)),
					KeyValues: metadata,
				})
			} else {
				res, err = store.UploadFile(cmd.Context(), path)
			}
			if err != nil {
				return err
			}
			newPrinter(cmd).success("Uploaded %s (%d bytes) via %s", path, res.Size, store.Provider())
			_, err = cmd.OutOrStdout().Write([]byte(res.ContentAddress + "\n"))
			return err
		},
	}
	cmd.Flags().StringToStringVarP(&metadata, "metadata", "m", nil, "Pin metadata as key=value pairs")
	return cmd
}

func newIPFSDownloadCmd(g *globals) *cobra.Command {
	var (
		output  string
		extract bool
	)
	cmd := &cobra.Command{
		Use:   "download <content-address>",
		Short: "Download stored content",
		Long: `Download content by address to --output. With --extract the content is
treated as a package archive and unpacked into the --output directory.`,
		Args: exactArgs(1, "a content address"),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage(g)
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if extract {
				files, err := store.DownloadPackage(cmd.Context(), args[0], output)
				if err != nil {
					return err
				}
				p.success("Extracted %d files to %s", files, output)
				return nil
			}
			size, err := store.DownloadFile(cmd.Context(), args[0], output)
			if err != nil {
				return err
			}
			p.success("Wrote %d bytes to %s", size, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, or directory with --extract")
	cmd.Flags().BoolVarP(&extract, "extract", "x", false, "Unpack a package archive")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newIPFSTestCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that the storage provider is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			st, err := a.StorageStatus(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if !st.Reachable {
				p.warn("%s storage is not reachable", st.Provider)
				return nil
			}
			p.success("%s storage is reachable", st.Provider)
			return nil
		},
	}
}
