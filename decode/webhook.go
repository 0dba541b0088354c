package decode

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Errors returned when a request path or query does not address a webhook.
// The messages are returned to callers verbatim.
var (
	ErrInvalidPath          = errors.New("Invalid path.")
	ErrMissingWebhookID     = errors.New("Missing webhook id.")
	ErrMissingWebhookToken  = errors.New("Missing webhook token.")
	ErrInvalidWaitParameter = errors.New("Invalid wait parameter.")
	ErrInvalidThreadID      = errors.New("Invalid thread_id parameter.")
)

var (
	// webhookPathPattern matches the webhook execute route with an optional
	// api version; the id and token segments are captured even when empty
	// so that a missing one can be reported specifically. Trailing segments
	// such as /github or /slack select other body formats and are rejected.
	webhookPathPattern = regexp.MustCompile(`^/api/(?:v\d{1,3}/)?webhooks(?:/([^/]*))?(?:/([^/]*))?/?$`)
	webhookIDPattern   = regexp.MustCompile(`^[0-9]\w+$`)
	// tokens are base64url-ish strings
	webhookTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)
	threadIDPattern     = regexp.MustCompile(`^[0-9]+$`)
)

// DeliveryOptions are the query parameters of an inbound request
// that change how the merged message is delivered upstream
type DeliveryOptions struct {
	// Wait asks upstream to reply with the created message
	Wait bool
	// ThreadID targets a thread inside the webhook's channel, empty when unset
	ThreadID string
}

// Destination is where a batch is delivered: a webhook credential pair
// plus the delivery options every member of the batch shares
type Destination struct {
	WebhookID    string
	WebhookToken string
	Options      DeliveryOptions
}

// Key returns the batching key for the destination. Requests with equal keys
// are merged together, so delivery options are part of the key.
func (d Destination) Key() string {
	var key strings.Builder

	key.WriteString(d.WebhookID)
	key.WriteString("-")
	key.WriteString(d.WebhookToken)

	if d.Options.ThreadID != "" {
		key.WriteString(":thread=")
		key.WriteString(d.Options.ThreadID)
	}

	if d.Options.Wait {
		key.WriteString(":wait")
	}

	return key.String()
}

// Fingerprint returns the keccak256 hash of the destination key as a hex string,
// safe to log and to use in storage keys as it does not reveal the webhook token
func (d Destination) Fingerprint() string {
	return crypto.Keccak256Hash([]byte(d.Key())).Hex()
}

// Query returns the query parameters to forward upstream
func (d Destination) Query() url.Values {
	query := url.Values{}

	if d.Options.Wait {
		query.Set("wait", "true")
	}

	if d.Options.ThreadID != "" {
		query.Set("thread_id", d.Options.ThreadID)
	}

	return query
}

// URL returns the upstream url for the destination given the
// base webhook endpoint (e.g. https://discord.com/api/webhooks)
func (d Destination) URL(endpoint string) string {
	target := strings.TrimSuffix(endpoint, "/") + "/" + url.PathEscape(d.WebhookID) + "/" + url.PathEscape(d.WebhookToken)

	if query := d.Query(); len(query) > 0 {
		target += "?" + query.Encode()
	}

	return target
}

// ValidateRequestPath parses the destination addressed by an inbound request url,
// returning one of the errors above if the url does not address a webhook
func ValidateRequestPath(requestURL *url.URL) (Destination, error) {
	matches := webhookPathPattern.FindStringSubmatch(requestURL.Path)
	if matches == nil {
		return Destination{}, ErrInvalidPath
	}

	webhookID, webhookToken := matches[1], matches[2]

	if webhookID == "" {
		return Destination{}, ErrMissingWebhookID
	}

	if webhookToken == "" {
		return Destination{}, ErrMissingWebhookToken
	}

	if !webhookIDPattern.MatchString(webhookID) || !webhookTokenPattern.MatchString(webhookToken) {
		return Destination{}, ErrInvalidPath
	}

	options, err := parseDeliveryOptions(requestURL.Query())
	if err != nil {
		return Destination{}, err
	}

	return Destination{
		WebhookID:    webhookID,
		WebhookToken: webhookToken,
		Options:      options,
	}, nil
}

func parseDeliveryOptions(query url.Values) (DeliveryOptions, error) {
	var options DeliveryOptions

	if query.Has("wait") {
		wait, err := strconv.ParseBool(query.Get("wait"))
		if err != nil {
			return options, ErrInvalidWaitParameter
		}
		options.Wait = wait
	}

	if query.Has("thread_id") {
		threadID := query.Get("thread_id")
		if !threadIDPattern.MatchString(threadID) {
			return options, ErrInvalidThreadID
		}
		options.ThreadID = threadID
	}

	return options, nil
}
