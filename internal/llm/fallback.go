package llm

import (
	"context"
	"errors"
	"strconv"

	"github.com/aws/smithy-go"

	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

// FallbackClient wraps a primary client with a fallback provider.
// If the primary fails, the request is retried once on the fallback.
type FallbackClient struct {
	primary       Client
	fallback      Client
	fallbackModel string
	logger        *logging.Logger
}

// NewFallbackClient creates a fallback-enabled client. fallbackModel replaces
// the request model on the fallback call when set. A nil fallback makes it a
// pass-through.
func NewFallbackClient(primary, fallback Client, fallbackModel string, logger *logging.Logger) *FallbackClient {
	if primary == nil {
		panic("llm: primary client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{
		primary:       primary,
		fallback:      fallback,
		fallbackModel: fallbackModel,
		logger:        logger,
	}
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return Response{}, err
	}

	c.logger.Warn("primary LLM failed, attempting fallback",
		"error", err.Error(),
		"error_code", errorCode(err),
		"fallback_available", c.fallback != nil,
	)
	if c.fallback == nil {
		return Response{}, err
	}

	if c.fallbackModel != "" {
		req.Model = c.fallbackModel
	}
	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return Response{}, fallbackErr
	}

	c.logger.Info("fallback LLM succeeded after primary failure")
	return fallbackResp, nil
}

// errorCode extracts a provider error code for logging.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return "http_" + strconv.Itoa(httpErr.Status)
	}
	return ""
}
