// Package telemetry provides observability instrumentation for recman.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry), metrics
// (Prometheus) and synchronous change events behind a single Telemetry value
// that travels in a context.Context.
//
// # Usage
//
// Initialize telemetry at startup and attach it to the context handed to the
// record store:
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// Every record store operation is wrapped by RecordStoreOperation, which opens
// a "store.<operation>" span, observes the store_operation_duration_seconds
// histogram and counts store_operations_total by backend, operation and status.
// Failures are additionally counted in errors_total by error class.
//
// # Events
//
// Mutations publish record.added, record.updated and record.deleted events;
// loads and saves publish store.loaded and store.saved. Delivery is
// synchronous on the caller's goroutine:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.RecordID)
//	}, telemetry.FilterByType(telemetry.EventTypeRecordDeleted))
//
// # Metrics endpoint
//
// Metrics are always collected in-process when enabled. Setting
// MetricsConfig.ListenAddress serves them over HTTP at MetricsConfig.Path.
package telemetry
