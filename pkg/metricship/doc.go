// Package metricship provides an embeddable telemetry publisher.
//
// Samples handed to a [Client] are split into batches that are posted to the
// collection endpoint concurrently. A failed batch never cancels the others;
// the whole cycle is bounded by Config.PublishTimeout and the [Result] reports
// how many samples were delivered.
//
// # Basic Usage
//
//	client, err := metricship.New(metricship.Config{
//	    Endpoint: "http://localhost:7101/api/v1/publish",
//	    Tags:     map[string]string{"app": "web"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res := client.Publish(ctx, samples)
//	if !res.Complete() {
//	    log.Printf("sent %d/%d", res.Delivered, res.Expected)
//	}
//
// # Periodic Publishing
//
// Pass a [SampleSource] with [WithSource] and call [Client.Start] to publish
// every Config.Step in the background until [Client.Stop].
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler] for no-op defaults)
// and pass it via [WithEventHandler]. Events are called synchronously from
// the publishing goroutine and should return quickly.
//
// # Dependency Injection
//
//	client, err := metricship.New(cfg,
//	    metricship.WithHTTPClient(mockClient),
//	    metricship.WithLogger(customLogger),
//	    metricship.WithMeterProvider(provider),
//	)
package metricship
