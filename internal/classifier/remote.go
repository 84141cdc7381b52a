package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Remote calls an external model-serving endpoint. The endpoint
// accepts {"text": ...} and answers with category, sentiment and
// urgency as lowercase strings.
type Remote struct {
	url    string
	client *http.Client
}

// NewRemote builds a remote classifier for the given endpoint.
func NewRemote(url string) *Remote {
	return &Remote{
		url:    url,
		client: &http.Client{},
	}
}

type remoteRequest struct {
	Text string `json:"text"`
}

// Classify posts the message to the model endpoint. Deadlines come
// from ctx; the caller bounds how long a classification may take.
func (r *Remote) Classify(ctx context.Context, text string) (Classification, error) {
	payload, err := json.Marshal(remoteRequest{Text: text})
	if err != nil {
		return Classification{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return Classification{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Classification{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Classification{}, fmt.Errorf("classifier endpoint returned status %d", resp.StatusCode)
	}

	var result Classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Classification{}, err
	}
	if result.Urgency.Severity() < 0 {
		return Classification{}, fmt.Errorf("classifier returned unknown urgency %q", result.Urgency)
	}
	return result, nil
}
