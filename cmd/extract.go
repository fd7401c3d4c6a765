package cmd

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alec-rabold/zipspy/pkg/archive"
	"github.com/alec-rabold/zipspy/pkg/zipfile"
)

var extractFiles, outFiles []string
var chunkSize int64

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract one or more files from a zip archive",
	Long: `Streams range(s) of bytes from a zip archive on a backing store
	(S3, local file, or SFTP) and decompresses the matching entries.

	ex:
	zipspy extract -b myBucket -k myKey -f plan.txt
	zipspy extract --file local.zip -f plan.txt -o my/directory/plan.txt
	zipspy extract -b myBucket -k myKey -f plan1.txt -f path/to/plan3.txt -f /directory
	zipspy extract -b myBucket -k myKey -f plan1.txt -o plan1.txt -f plan2.txt -o plan2.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(extractFiles) == 0 {
			cmd.Usage()
			os.Exit(1)
		}
		if len(outFiles) > 1 && len(outFiles) != len(extractFiles) {
			cmd.Usage()
			log.Error("error: must specify one output file for every search term")
			os.Exit(1)
		}

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

		var opts []archive.StreamOptions
		if chunkSize > 0 {
			opts = append(opts, archive.StreamOptions{ChunkSize: chunkSize})
		}
		records, err := z.ExtractFiles(ctx, extractFiles, opts...)
		if err != nil {
			log.Errorf("error extracting files from archive, err: %v", err)
			return err
		}

		return writeExtracted(records)
	},
}

func writeExtracted(records *zipfile.ExtractResult) error {
	switch {
	case len(outFiles) == 0:
		for _, files := range records.FileMap {
			for _, f := range files {
				fmt.Println(f.Contents.String())
			}
		}
	case len(outFiles) == 1:
		return appendAllTo(outFiles[0], records)
	default:
		outputMap := make(map[string]string) // searchTerm -> outputFile
		for i := range outFiles {
			outputMap[extractFiles[i]] = outFiles[i]
		}
		for searchTerm, files := range records.FileMap {
			out, ok := outputMap[searchTerm]
			if !ok {
				continue
			}
			if err := appendFilesTo(out, files); err != nil {
				return err
			}
		}
	}
	return nil
}

func appendAllTo(path string, records *zipfile.ExtractResult) error {
	for _, files := range records.FileMap {
		if err := appendFilesTo(path, files); err != nil {
			return err
		}
	}
	return nil
}

func appendFilesTo(path string, files []*zipfile.File) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Errorf("error opening file (name: %s), err: %v", path, err)
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Errorf("error closing file (name: %s), err: %v", path, err)
		}
	}()
	for _, file := range files {
		if _, err := f.Write(file.Contents.Bytes()); err != nil {
			log.Errorf("error writing to file (name: %s), err: %v", path, err)
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(extractCmd)
	addBackendFlags(extractCmd)
	extractCmd.PersistentFlags().StringSliceVarP(&outFiles, "out", "o", []string{}, "name(s) of the file(s) to write output to")
	extractCmd.PersistentFlags().StringSliceVarP(&extractFiles, "search", "f", []string{}, "(required) names of the files/paths to extract (e.g. plan.txt, /path/to/plan.txt, /directory)")
	extractCmd.PersistentFlags().Int64Var(&chunkSize, "chunk-size", 0, "compressed-data read chunk size in bytes (default 65000)")
}
