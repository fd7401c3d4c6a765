package cmd

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alec-rabold/zipspy/pkg/zipfile"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the entries in a zip archive without extracting them",
	Long: `Opens a zip archive on a backing store (S3, local file, or SFTP)
	and prints every entry's name, size, and modification time, in
	central-directory order.

	ex:
	zipspy list -b myBucket -k myKey
	zipspy list --file local.zip`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openBackend(ctx)
		if err != nil {
			log.Errorf("error selecting backend, err: %v", err)
			return err
		}

		z, err := zipfile.NewFileExtractor(ctx, store)
		if err != nil {
			log.Errorf("error opening archive, err: %v", err)
			return err
		}

		for _, entry := range z.List() {
			modified := "-"
			if entry.Modified != nil {
				modified = entry.Modified.Format("2006-01-02T15:04:05")
			}
			fmt.Printf("%-50s %12d %12d %s\n", entry.Name, entry.CompressedSize, entry.UncompressedSize, modified)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	addBackendFlags(listCmd)
}
