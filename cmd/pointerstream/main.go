// Command pointerstream is an AWS Lambda function that consumes the pointer
// table's stream and writes compressed change batches to standard output.
package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/pointers/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	batchSize := stream.DefaultBatchSize
	if v := os.Getenv("POINTER_CHANGE_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			logger.Error("invalid POINTER_CHANGE_BATCH_SIZE", "value", v, "error", err)
			os.Exit(1)
		}
		batchSize = n
	}

	h := stream.NewHandler(stream.NewWriterSink(os.Stdout), logger, batchSize)
	lambda.Start(h.HandlePointerChanges)
}
