package cmd

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/pkg/sftp"
	"github.com/spf13/cobra"

	"github.com/alec-rabold/zipspy/pkg/backend"
	"github.com/alec-rabold/zipspy/pkg/backend/local"
	"github.com/alec-rabold/zipspy/pkg/backend/s3"
	sftpbackend "github.com/alec-rabold/zipspy/pkg/backend/sftp"
)

// Backend-selection flags, shared by every subcommand that opens an
// archive (extract, list). One of the backend groups below must be
// supplied; if several are, openBackend uses the first of S3, local file,
// SFTP.
var (
	bucket, key string // S3
	localFile   string // local file

	sftpHost, sftpUser, sftpKeyFile, sftpPath string // SFTP
)

func addBackendFlags(c *cobra.Command) {
	c.PersistentFlags().StringVarP(&key, "key", "k", "", "name of the S3 key (object)")
	c.PersistentFlags().StringVarP(&bucket, "bucket", "b", "", "name of the S3 bucket")
	c.PersistentFlags().StringVar(&localFile, "file", "", "path to a local zip file")
	c.PersistentFlags().StringVar(&sftpHost, "sftp-host", "", "SFTP host:port")
	c.PersistentFlags().StringVar(&sftpUser, "sftp-user", "", "SFTP username")
	c.PersistentFlags().StringVar(&sftpKeyFile, "sftp-key-file", "", "path to an SFTP private key")
	c.PersistentFlags().StringVar(&sftpPath, "sftp-path", "", "path to the zip file on the SFTP host")
}

// openBackend builds a backend.Store from whichever flag group the caller
// populated, per SPEC_FULL.md's backend-selection flags.
func openBackend(ctx context.Context) (backend.Store, error) {
	switch {
	case bucket != "" && key != "":
		return s3.New(bucket, key)
	case localFile != "":
		f, err := os.Open(localFile)
		if err != nil {
			return nil, err
		}
		return local.New(f), nil
	case sftpHost != "" && sftpPath != "":
		return openSFTPStore(ctx)
	default:
		return nil, fmt.Errorf("no backend selected: pass --bucket/--key, --file, or --sftp-host/--sftp-path")
	}
}

func openSFTPStore(ctx context.Context) (backend.Store, error) {
	keyBytes, err := os.ReadFile(sftpKeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading sftp key file: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing sftp private key: %w", err)
	}

	client, err := ssh.Dial("tcp", sftpHost, &ssh.ClientConfig{
		User:            sftpUser,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("dialing sftp host: %w", err)
	}

	sc, err := sftp.NewClient(client)
	if err != nil {
		return nil, fmt.Errorf("starting sftp session: %w", err)
	}

	return sftpbackend.Open(sc, sftpPath)
}
