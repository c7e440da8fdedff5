package types

import "log/slog"

type (
	AzureDevOpsToken string
	PipelineID       int64
	BuildID          int64
)

func (x AzureDevOpsToken) LogValue() slog.Value {
	return slog.StringValue("***********")
}

func (x AzureDevOpsToken) String() string {
	return "***********"
}
