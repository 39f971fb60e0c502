package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	flagEndpoint = "endpoint"
	flagToken    = "token"
	flagAttempts = "attempts"
	flagTimeout  = "timeout"
)

// sendOptions configures a webhook replay
type sendOptions struct {
	endpoint string
	token    string
	attempts int
	timeout  time.Duration
	// backoff is the wait before the second attempt; it doubles after every failure
	backoff time.Duration
}

func addSendFlags(flags *pflag.FlagSet, opts *sendOptions) {
	flags.StringVar(&opts.endpoint, flagEndpoint, os.Getenv("FACTORY_HOOK_ENDPOINT"), "base URL of the service (env: FACTORY_HOOK_ENDPOINT)")
	flags.StringVar(&opts.token, flagToken, os.Getenv("BEARER_TOKEN"), "bearer token when authentication is enabled (env: BEARER_TOKEN)")
	flags.IntVar(&opts.attempts, flagAttempts, 3, "delivery attempts before giving up")
	flags.DurationVar(&opts.timeout, flagTimeout, 10*time.Second, "timeout of a single attempt")
}

func newSendEventCommand() *cobra.Command {
	opts := &sendOptions{backoff: time.Second}

	cmd := &cobra.Command{
		Use:   "send-event <payload.json>",
		Short: "Post a recorded issue webhook payload to a running service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.endpoint == "" {
				return fmt.Errorf("--%s is required", flagEndpoint)
			}
			if opts.attempts < 1 {
				return fmt.Errorf("--%s must be at least 1", flagAttempts)
			}

			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}
			if !json.Valid(payload) {
				return fmt.Errorf("payload %s is not valid JSON", args[0])
			}

			eventID, err := sendEvent(cmd.Context(), opts, payload)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "accepted event %s\n", eventID)
			return err
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	addSendFlags(cmd.Flags(), opts)
	return cmd
}

type acceptedResponse struct {
	EventID string `json:"eventId"`
}

// sendEvent posts payload to the events endpoint, retrying with exponential
// backoff. Every attempt carries the same request id so the service logs
// can be correlated.
func sendEvent(ctx context.Context, opts *sendOptions, payload []byte) (string, error) {
	endpoint := strings.TrimRight(opts.endpoint, "/") + "/events"
	requestID := uuid.NewString()
	httpClient := &http.Client{Timeout: opts.timeout}
	backoff := opts.backoff

	var lastErr error
	for attempt := 1; attempt <= opts.attempts; attempt++ {
		eventID, retry, err := postEvent(ctx, httpClient, endpoint, requestID, opts.token, payload)
		if err == nil {
			slog.Debug("Issue event delivered", "url", endpoint, "event_id", eventID, "attempt", attempt)
			return eventID, nil
		}
		lastErr = err
		slog.Warn("Issue event delivery failed",
			"url", endpoint,
			"attempt", attempt,
			"max_attempts", opts.attempts,
			"error", err,
		)
		if !retry || attempt == opts.attempts {
			break
		}

		slog.Debug("Retrying", "backoff", backoff)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return "", fmt.Errorf("delivering issue event to %s: %w", endpoint, lastErr)
}

// postEvent makes one delivery attempt. Client errors other than 429 are not retried.
func postEvent(ctx context.Context, httpClient *http.Client, endpoint, requestID, token string, payload []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("error sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return "", retry, fmt.Errorf("received non-success status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var accepted acceptedResponse
	if err := json.Unmarshal(body, &accepted); err != nil || accepted.EventID == "" {
		return requestID, false, nil
	}
	return accepted.EventID, false, nil
}
