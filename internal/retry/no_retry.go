package retry

import "context"

// NoRetryStrategy executes operations once
type NoRetryStrategy struct{}

func NewNoRetryStrategy() *NoRetryStrategy {
	return &NoRetryStrategy{}
}

func (s *NoRetryStrategy) Execute(ctx context.Context, operation Operation) error {
	return operation()
}

func (s *NoRetryStrategy) Name() string {
	return "NoRetry"
}
