package scans

import (
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/jedib0t/go-pretty/v6/progress"
)

var apiClient = resty.New()

// fetchSubject downloads all slices of one subject from the dataset
// endpoint: GET {base}/{scanner}/{subject}.json returning a JSON array of
// slices.
func fetchSubject(pw progress.Writer, baseURL, scanner, subject string) ([]Slice, error) {
	var tracker *progress.Tracker
	if pw != nil {
		tracker = &progress.Tracker{
			Message: fmt.Sprintf("Fetching %s/%s", scanner, subject),
			Units:   progress.UnitsDefault,
		}
		pw.AppendTracker(tracker)
		tracker.Start()
	}

	resp, err := apiClient.R().Get(fmt.Sprintf("%s/%s/%s.json", baseURL, scanner, subject))
	if err != nil {
		return nil, fmt.Errorf("scans: failed to fetch subject %s/%s: %v", scanner, subject, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("scans: api error response for %s/%s: %s", scanner, subject, resp.Status())
	}

	var out []Slice
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("scans: failed to decode subject %s/%s: %v", scanner, subject, err)
	}

	for i := range out {
		out[i].Scanner = scanner
		out[i].Subject = subject
	}

	if tracker != nil {
		tracker.UpdateTotal(int64(len(out)))
		tracker.SetValue(int64(len(out)))
		tracker.MarkAsDone()
	}

	return out, nil
}
