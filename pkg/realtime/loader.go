package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPLoader is the default CollectionLoader, fetching collections from the
// relay's REST endpoints (GET {base}/api/{table}).
type HTTPLoader struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPLoader(baseURL, token string, client *http.Client) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPLoader{baseURL: baseURL, token: token, client: client}
}

func (l *HTTPLoader) Reload(ctx context.Context, table string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/"+table, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+l.token)
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reload %s: %w", table, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reload %s: unexpected status %d", table, resp.StatusCode)
	}
	var collection []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return nil, fmt.Errorf("reload %s: decode: %w", table, err)
	}
	return collection, nil
}
