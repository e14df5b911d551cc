package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"coachcrm/internal/adapters/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSONL snapshot of the board to a file and/or S3",
	Long: `Write a JSONL snapshot of the owner's board: a header line, then one line
per lead in column order.

With neither --out nor --s3-bucket the snapshot goes to stdout.`,
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("out")
		bucket, _ := cmd.Flags().GetString("s3-bucket")
		key, _ := cmd.Flags().GetString("s3-key")
		region, _ := cmd.Flags().GetString("s3-region")
		endpoint, _ := cmd.Flags().GetString("s3-endpoint")

		ws, b, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer ws.Close()

		now := timeNow()
		if outPath == "" && bucket == "" {
			return export.WriteJSONL(cmd.OutOrStdout(), owner, b, now)
		}

		var dests []export.Destination
		if outPath != "" {
			dests = append(dests, export.NewFileDestination(outPath))
		}
		if bucket != "" {
			if key == "" {
				key = fmt.Sprintf("leads/%s/%s.jsonl", owner, now.UTC().Format("20060102T150405Z"))
			}
			s3dest, err := export.NewS3Destination(cmd.Context(), export.S3Options{
				Bucket:   bucket,
				Key:      key,
				Region:   region,
				Endpoint: endpoint,
			})
			if err != nil {
				return err
			}
			dests = append(dests, s3dest)
		}

		n, err := export.Export(cmd.Context(), owner, b, now, dests...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d leads (%s)\n", b.Len(), humanize.Bytes(uint64(n)))
		return nil
	},
}

func envOr(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

func init() {
	exportCmd.Flags().String("out", "", "write the snapshot to this file")
	exportCmd.Flags().String("s3-bucket", os.Getenv("CRM_EXPORT_S3_BUCKET"), "upload the snapshot to this bucket")
	exportCmd.Flags().String("s3-key", "", "object key (default leads/<owner>/<timestamp>.jsonl)")
	exportCmd.Flags().String("s3-region", envOr("CRM_EXPORT_S3_REGION", "us-east-1"), "bucket region")
	exportCmd.Flags().String("s3-endpoint", os.Getenv("CRM_EXPORT_S3_ENDPOINT"), "S3-compatible endpoint (MinIO and similar)")
}
