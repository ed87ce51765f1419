package cli

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"hirepal/handler"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda function behind API Gateway",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		rt, err := buildRuntime(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer rt.Close()

		h, err := handler.NewHandler(rt.Service, log)
		if err != nil {
			return err
		}
		lambda.Start(h.Handle)
		return nil
	},
}
