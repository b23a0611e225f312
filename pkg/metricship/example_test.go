package metricship_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/bft-labs/metricship/pkg/metricship"
)

// ExampleNew demonstrates publishing one set of samples.
func ExampleNew() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := metricship.New(metricship.Config{
		Endpoint: srv.URL,
		Tags:     map[string]string{"app": "web"},
	})
	if err != nil {
		fmt.Printf("failed to create client: %v\n", err)
		return
	}

	now := time.Now()
	res := client.Publish(context.Background(), []metricship.Sample{
		metricship.NumericSample("requests", map[string]string{"status": "200"}, now, 42),
		metricship.NumericSample("latency", nil, now, 0.25),
	})
	fmt.Printf("sent %d/%d\n", res.Delivered, res.Expected)

	// Output: sent 2/2
}

// Example_withEventHandler demonstrates receiving publish results.
func Example_withEventHandler() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := metricship.New(metricship.Config{Endpoint: srv.URL}, metricship.WithEventHandler(&printHandler{}))
	if err != nil {
		fmt.Printf("failed to create client: %v\n", err)
		return
	}

	client.Publish(context.Background(), []metricship.Sample{
		metricship.NumericSample("requests", nil, time.Now(), 1),
	})

	// Output: published 0/1 failed=true
}

type printHandler struct {
	metricship.BaseEventHandler
}

func (h *printHandler) OnPublish(res metricship.Result) {
	fmt.Printf("published %d/%d failed=%v\n", res.Delivered, res.Expected, res.Outcome.Failed)
}
