package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/theleftbit/stories/internal/deploy"
)

var (
	deployBucket string
	deployPrefix string
	deployRegion string
	deployBuild  bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Upload the output directory to an S3 bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if deployBucket == "" {
			return errors.New("--bucket is required")
		}
		ctx := cmd.Context()
		if deployBuild {
			if err := renderSite(ctx, false); err != nil {
				return err
			}
		}

		up, err := deploy.NewS3Uploader(ctx, deployRegion, deployBucket, deployPrefix, logger)
		if err != nil {
			return err
		}
		n, err := up.UploadDir(ctx, conf.OutDir)
		if err != nil {
			return err
		}
		logger.Info("deployed", "bucket", deployBucket, "prefix", deployPrefix, "files", n)
		return nil
	},
}

func init() {
	deployCmd.Flags().StringVar(&deployBucket, "bucket", "", "Destination bucket")
	deployCmd.Flags().StringVar(&deployPrefix, "prefix", "", "Key prefix inside the bucket")
	deployCmd.Flags().StringVar(&deployRegion, "region", "", "AWS region; defaults to the environment")
	deployCmd.Flags().BoolVar(&deployBuild, "build", true, "Render the site before uploading")
}
