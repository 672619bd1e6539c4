package nlu_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bdobrica/Himawari/internal/himawari/nlu"
	"github.com/bdobrica/Himawari/internal/himawari/params"
)

func TestKeywordIntents(t *testing.T) {
	cases := []struct {
		text string
		want nlu.Intent
	}{
		{"I need a t3.micro ubuntu server in dev", nlu.IntentCreate},
		{"create an s3 bucket called reports", nlu.IntentCreate},
		{"deploy it", nlu.IntentDeploy},
		{"cancel the request", nlu.IntentCancel},
		{"what's the status of my server?", nlu.IntentStatus},
		{"how much will this cost?", nlu.IntentCost},
		{"I need prod access", nlu.IntentAccess},
		{"let's configure the vpc", nlu.IntentNetworking},
		{"what instance types am I allowed to use?", nlu.IntentQuery},
		{"hello there", nlu.IntentGeneral},
	}
	k := nlu.Keyword{}
	for _, tc := range cases {
		res, err := k.Classify(context.Background(), nlu.Request{Message: tc.text})
		if err != nil {
			t.Fatalf("Classify(%q): %v", tc.text, err)
		}
		if res.Intent != tc.want {
			t.Errorf("Classify(%q).Intent = %s, want %s", tc.text, res.Intent, tc.want)
		}
	}
}

func TestKeywordExtractsParameters(t *testing.T) {
	k := nlu.Keyword{}
	res, _ := k.Classify(context.Background(), nlu.Request{
		Message: "I need a t3.small ubuntu server in dev with 50gb",
	})

	if res.Service != params.ServiceEC2 {
		t.Fatalf("service = %s", res.Service)
	}
	got := map[string]string{}
	for _, u := range res.Updates {
		got[u.Field] = u.Value
	}
	if got[params.FieldInstanceType] != "t3.small" || got[params.FieldStorageSize] != "50" {
		t.Errorf("updates = %v", res.Updates)
	}
}

func TestKeywordChangeVerbsAreDirect(t *testing.T) {
	k := nlu.Keyword{}

	res, _ := k.Classify(context.Background(), nlu.Request{
		Message: "change the instance to t3.medium",
		Service: params.ServiceEC2,
	})
	if res.Mode != params.Direct {
		t.Errorf("explicit change should be direct")
	}

	res, _ = k.Classify(context.Background(), nlu.Request{
		Message: "t3.medium might be nice",
		Service: params.ServiceEC2,
	})
	if res.Mode != params.Ambiguous {
		t.Errorf("bare mention should be ambiguous")
	}
}

// errProvider fails every call with a fixed error.
type errProvider struct{ err error }

func (p errProvider) Classify(ctx context.Context, req nlu.Request) (*nlu.Result, error) {
	return nil, p.err
}

// slowProvider blocks until the context is done.
type slowProvider struct{}

func (slowProvider) Classify(ctx context.Context, req nlu.Request) (*nlu.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// fixedProvider returns a canned result.
type fixedProvider struct{ res *nlu.Result }

func (p fixedProvider) Classify(ctx context.Context, req nlu.Request) (*nlu.Result, error) {
	return p.res, nil
}

func TestClassifierFallsBackOnProviderError(t *testing.T) {
	for name, provider := range map[string]nlu.Provider{
		"rate limit": errProvider{nlu.ErrRateLimit},
		"malformed":  errProvider{nlu.ErrMalformedOutput},
		"generic":    errProvider{errors.New("boom")},
		"nil":        nil,
	} {
		c := nlu.NewClassifier(provider)
		res := c.Classify(context.Background(), nlu.Request{Message: "create a t3.micro server in dev"})
		if res == nil {
			t.Fatalf("%s: classifier returned nil", name)
		}
		if res.Intent != nlu.IntentCreate {
			t.Errorf("%s: fallback intent = %s, want create", name, res.Intent)
		}
	}
}

func TestClassifierReplacesLowConfidenceReading(t *testing.T) {
	c := nlu.NewClassifier(fixedProvider{&nlu.Result{Intent: nlu.IntentDeploy, Confidence: 0.2}})
	res := c.Classify(context.Background(), nlu.Request{Message: "create a server"})
	if res.Intent != nlu.IntentCreate {
		t.Errorf("low-confidence deploy should give way to keyword create, got %s", res.Intent)
	}
}

func TestClassifierKeepsConfidentReading(t *testing.T) {
	want := &nlu.Result{Intent: nlu.IntentDeploy, Confidence: 0.9}
	c := nlu.NewClassifier(fixedProvider{want})
	res := c.Classify(context.Background(), nlu.Request{Message: "create a server"})
	if res.Intent != nlu.IntentDeploy {
		t.Errorf("confident reading discarded, got %s", res.Intent)
	}
}

func TestClassifierTimeoutUsesKeywords(t *testing.T) {
	// A cancelled parent context stands in for the per-turn deadline so
	// the test does not wait 12 seconds.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := nlu.NewClassifier(slowProvider{})
	res := c.Classify(ctx, nlu.Request{Message: "deploy it"})
	if res.Intent != nlu.IntentDeploy {
		t.Errorf("fallback intent = %s, want deploy", res.Intent)
	}
}

func oaiHandler(t *testing.T, payload string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": payload}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestOpenAIProviderDecodesReading(t *testing.T) {
	payload := `{"intent":"update","service":"ec2","parameters":{"instance_type":"t3.small","bogus":"x"},"change_type":"direct","confidence":0.92}`
	srv := httptest.NewServer(oaiHandler(t, payload, http.StatusOK))
	defer srv.Close()

	p := nlu.NewOpenAI(nlu.Config{APIKey: "test", BaseURL: srv.URL})
	res, err := p.Classify(context.Background(), nlu.Request{Message: "change it to t3.small"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Intent != nlu.IntentUpdate || res.Service != params.ServiceEC2 {
		t.Errorf("reading = %+v", res)
	}
	if res.Mode != params.Direct {
		t.Errorf("mode should be direct")
	}
	if len(res.Updates) != 1 || res.Updates[0].Field != params.FieldInstanceType {
		t.Errorf("unknown fields should be dropped: %v", res.Updates)
	}
}

func TestOpenAIProviderRateLimit(t *testing.T) {
	srv := httptest.NewServer(oaiHandler(t, "", http.StatusTooManyRequests))
	defer srv.Close()

	p := nlu.NewOpenAI(nlu.Config{APIKey: "test", BaseURL: srv.URL})
	_, err := p.Classify(context.Background(), nlu.Request{Message: "hi"})
	if !errors.Is(err, nlu.ErrRateLimit) {
		t.Errorf("err = %v, want ErrRateLimit", err)
	}
}

func TestOpenAIProviderMalformedContent(t *testing.T) {
	srv := httptest.NewServer(oaiHandler(t, "definitely not json", http.StatusOK))
	defer srv.Close()

	p := nlu.NewOpenAI(nlu.Config{APIKey: "test", BaseURL: srv.URL})
	_, err := p.Classify(context.Background(), nlu.Request{Message: "hi"})
	if !errors.Is(err, nlu.ErrMalformedOutput) {
		t.Errorf("err = %v, want ErrMalformedOutput", err)
	}
}

func TestOpenAIProviderUnknownIntentBecomesGeneral(t *testing.T) {
	payload := `{"intent":"summon","confidence":0.99}`
	srv := httptest.NewServer(oaiHandler(t, payload, http.StatusOK))
	defer srv.Close()

	p := nlu.NewOpenAI(nlu.Config{APIKey: "test", BaseURL: srv.URL})
	res, err := p.Classify(context.Background(), nlu.Request{Message: "hi"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Intent != nlu.IntentGeneral {
		t.Errorf("intent = %s, want general", res.Intent)
	}
}
