package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/weiihann/hotloop/wire"
)

const linkRequestTimeout = 30 * time.Second

// linkClient is the child's side of the link.
type linkClient struct {
	base  string
	token string
	http  *http.Client
}

func newLinkClient(base, token string) *linkClient {
	return &linkClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: linkRequestTimeout},
	}
}

func (c *linkClient) plan(ctx context.Context) (wire.Plan, error) {
	var p wire.Plan
	if err := c.do(ctx, http.MethodGet, wire.PathPlan, nil, &p); err != nil {
		return wire.Plan{}, err
	}
	if err := wire.CheckVersion(p.Version); err != nil {
		return wire.Plan{}, err
	}

	return p, nil
}

func (c *linkClient) iteration(ctx context.Context, msg wire.IterationResult) error {
	return c.do(ctx, http.MethodPost, wire.PathIteration, msg, nil)
}

func (c *linkClient) failure(ctx context.Context, msg wire.Failure) error {
	return c.do(ctx, http.MethodPost, wire.PathFailure, msg, nil)
}

func (c *linkClient) done(ctx context.Context, msg wire.Done) error {
	return c.do(ctx, http.MethodPost, wire.PathDone, msg, nil)
}

func (c *linkClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set(wire.HeaderToken, c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))

		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}
