package jsonfetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/vainnor/airspace-engine/logger"
	"github.com/vainnor/airspace-engine/scenario"
)

// maxDatasetBytes caps the size of a downloaded dataset document.
const maxDatasetBytes = 16 << 20

// FetchDataset downloads a dataset document from url. JSON responses are
// decoded as JSON, anything else as YAML.
func FetchDataset(ctx context.Context, client *http.Client, url string, lg *logger.Logger) (*scenario.Dataset, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		lg.Warn("Error fetching dataset", "url", url, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		lg.Warn("Unexpected dataset response", "url", url, "status", resp.StatusCode)
		return nil, fmt.Errorf("fetch dataset %s: unexpected status %s", url, resp.Status)
	}

	var d *scenario.Dataset
	body := io.LimitReader(resp.Body, maxDatasetBytes)
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt == "application/json" {
		var doc scenario.Dataset
		if err := json.NewDecoder(body).Decode(&doc); err != nil {
			lg.Warn("Error decoding dataset", "url", url, "error", err)
			return nil, fmt.Errorf("%w: %w", scenario.ErrInvalidDataset, err)
		}
		d = &doc
	} else {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		if d, err = scenario.Parse(data); err != nil {
			lg.Warn("Error decoding dataset", "url", url, "error", err)
			return nil, err
		}
	}

	lg.Info("Fetched dataset successfully", "url", url, "waypoints", len(d.Waypoints), "flights", len(d.Flights))
	return d, nil
}
