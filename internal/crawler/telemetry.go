package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/nao1215/catalogcrawler/internal/transport"
)

// telemetryPath is the statistics endpoint of the site.
const telemetryPath = "/mmy.txt"

// Telemetry sends the statistics beacons that page scripts send.
type Telemetry struct {
	fetcher  Fetcher
	endpoint string
	now      func() time.Time
	logger   *slog.Logger
}

// NewTelemetry creates a Telemetry for the site at origin.
func NewTelemetry(fetcher Fetcher, origin string, now func() time.Time, logger *slog.Logger) *Telemetry {
	return &Telemetry{
		fetcher:  fetcher,
		endpoint: origin + telemetryPath,
		now:      now,
		logger:   logger,
	}
}

// Now returns the current time in Unix milliseconds, the unit of the _ parameter.
func (t *Telemetry) Now() int64 {
	return t.now().UnixMilli()
}

// Send issues one beacon with the background profile.
// Beacons are best effort: failures are logged and only a cancelled
// context is reported back.
func (t *Telemetry) Send(ctx context.Context, params url.Values, rc transport.RequestContext) error {
	target := t.endpoint + "?" + params.Encode()
	if _, err := t.fetcher.Fetch(ctx, target, transport.Background, rc); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.logger.Warn("telemetry call failed", "action", params.Get("action"), "error", err)
	}
	return nil
}

// Values builds beacon parameters from key/value pairs.
func Values(action string, ts int64, kv ...string) url.Values {
	v := url.Values{}
	v.Set("action", action)
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	v.Set("_", strconv.FormatInt(ts, 10))
	return v
}

// Merge copies decoded page parameters into v, overriding existing keys.
func Merge(v url.Values, params map[string]any) url.Values {
	for k, val := range params {
		v.Set(k, formatParam(val))
	}
	return v
}

func formatParam(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
