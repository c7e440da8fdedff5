package usecase

// Export unexported functions for testing
var (
	InvalidLinkReasonForTest = invalidLinkReason
)
