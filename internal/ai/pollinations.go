package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const pollinationsBase = "https://text.pollinations.ai"

type pollinationsProvider struct {
	model  string
	client *http.Client
}

func newPollinationsProvider(model string) *pollinationsProvider {
	if model == "" {
		model = "openai"
	}
	return &pollinationsProvider{
		model:  model,
		client: &http.Client{Timeout: 25 * time.Second},
	}
}

func (p *pollinationsProvider) Generate(ctx context.Context, prompt string) (Reply, error) {
	payload := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 1,
		"private":     true,
	}
	data, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pollinationsBase+"/openai", bytes.NewReader(data))
	if err != nil {
		return Reply{}, transportError("pollinations", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Reply{}, transportError("pollinations", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Reply{}, statusError("pollinations", resp.StatusCode, resp.Header.Get("Retry-After"), body)
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return Reply{}, &Error{Provider: "pollinations", Msg: "returned html"}
	}

	return decodeChatCompletion("pollinations", body)
}

func (p *pollinationsProvider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollinationsBase+"/models", nil)
	if err != nil {
		return nil, transportError("pollinations", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError("pollinations", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError("pollinations", resp.StatusCode, resp.Header.Get("Retry-After"), body)
	}

	// The endpoint answers either plain names or objects with a name field.
	var names []string
	if err := json.Unmarshal(body, &names); err == nil {
		return names, nil
	}
	var objs []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &objs); err != nil {
		return nil, &Error{Provider: "pollinations", Msg: "unmarshal models: " + err.Error(), Err: err}
	}
	names = make([]string, 0, len(objs))
	for _, o := range objs {
		names = append(names, o.Name)
	}
	return names, nil
}
